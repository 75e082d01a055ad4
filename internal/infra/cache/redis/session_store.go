// Package redis keeps bearer sessions in Redis so several API replicas share them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"devrim/internal/domain/auth"
	"devrim/internal/domain/user"
)

const keyPrefix = "devrim:session:"

type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

type sessionValue struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *SessionStore) Save(ctx context.Context, session *auth.Session) error {
	if session == nil || session.Token == "" {
		return auth.ErrTokenRequired
	}
	ttl := session.Remaining(s.now())
	if ttl == 0 {
		return auth.ErrTTLInvalid
	}
	raw, err := json.Marshal(sessionValue{
		UserID:    string(session.UserID),
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(session.Token), raw, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, token auth.Token) (*auth.Session, error) {
	raw, err := s.client.Get(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var v sessionValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &auth.Session{
		Token:     token,
		UserID:    user.ID(v.UserID),
		CreatedAt: v.CreatedAt,
		ExpiresAt: v.ExpiresAt,
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, token auth.Token) error {
	return s.client.Del(ctx, key(token)).Err()
}

// Ping backs the readiness check.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// key never contains the raw bearer token.
func key(token auth.Token) string {
	return keyPrefix + token.Digest()
}

var _ auth.SessionStore = (*SessionStore)(nil)
