package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"devrim/internal/domain/auth"
)

func TestSaveRejectsExpiredSession(t *testing.T) {
	store := NewSessionStore(NewClient("localhost:0", "", 0))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	err := store.Save(context.Background(), &auth.Session{Token: "t", UserID: "u", ExpiresAt: now.Add(-time.Second)})
	assert.ErrorIs(t, err, auth.ErrTTLInvalid)
	assert.ErrorIs(t, store.Save(context.Background(), nil), auth.ErrTokenRequired)
}

func TestKeyPrefix(t *testing.T) {
	k := key("abc")
	assert.Equal(t, "devrim:session:"+auth.Token("abc").Digest(), k)
	assert.NotContains(t, k, "abc")
}
