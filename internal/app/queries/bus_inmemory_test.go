package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainuser "devrim/internal/domain/user"
)

type countQuery struct{ ActorID string }

func (countQuery) Key() string            { return "test.count" }
func (q countQuery) Actor() domainuser.ID { return domainuser.ID(q.ActorID) }

type counter struct{ calls int }

func (c *counter) Handle(_ context.Context, q countQuery) (int, error) {
	c.calls++
	return len(q.ActorID), nil
}

func TestInMemoryBusAsk(t *testing.T) {
	bus := NewInMemoryBus()
	h := &counter{}
	RegisterHandler[countQuery, int](bus, "test.count", h)

	n, err := Ask[countQuery, int](context.Background(), bus, countQuery{ActorID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, []string{"test.count"}, bus.Keys())

	_, err = Ask[countQuery, string](context.Background(), bus, countQuery{})
	assert.ErrorIs(t, err, ErrResultType)

	_, err = Ask[countQuery, int](context.Background(), nil, countQuery{})
	assert.ErrorIs(t, err, ErrNilBus)

	assert.Panics(t, func() { RegisterHandler[countQuery, int](bus, "test.count", h) })
}

func TestInMemoryBusUnknownKey(t *testing.T) {
	_, err := NewInMemoryBus().Ask(context.Background(), countQuery{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}
