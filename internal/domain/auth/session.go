package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"devrim/internal/domain/user"
)

var (
	ErrTokenRequired   = errors.New("auth: token is required")
	ErrUserRequired    = errors.New("auth: user is required")
	ErrTTLInvalid      = errors.New("auth: ttl must be positive")
	ErrSessionNotFound = errors.New("auth: session not found")
)

// Token is an opaque bearer credential. It is the only secret a chat client
// holds, so stores that outlive the process key by Digest instead.
type Token string

// Digest is the hex SHA-256 of the token.
func (t Token) Digest() string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}

// Hint is safe for logs: the first 8 digest characters.
func (t Token) Hint() string {
	return t.Digest()[:8]
}

// Session ties a token to the user whose chats it may read and write.
type Session struct {
	Token     Token
	UserID    user.ID
	CreatedAt time.Time
	ExpiresAt time.Time
}

type CreateSessionParams struct {
	Token  Token
	UserID user.ID
	TTL    time.Duration
	Now    time.Time
}

func NewSession(params CreateSessionParams) (*Session, error) {
	token := Token(strings.TrimSpace(string(params.Token)))
	switch {
	case token == "":
		return nil, ErrTokenRequired
	case strings.TrimSpace(string(params.UserID)) == "":
		return nil, ErrUserRequired
	case params.TTL <= 0:
		return nil, ErrTTLInvalid
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Session{Token: token, UserID: params.UserID, CreatedAt: now, ExpiresAt: now.Add(params.TTL)}, nil
}

// Remaining is the lifetime left at the given instant, never negative.
func (s *Session) Remaining(at time.Time) time.Duration {
	if at.IsZero() {
		at = time.Now()
	}
	return max(s.ExpiresAt.Sub(at), 0)
}

func (s *Session) Expired(at time.Time) bool {
	return s.Remaining(at) == 0
}

type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, token Token) (*Session, error)
	Delete(ctx context.Context, token Token) error
}
