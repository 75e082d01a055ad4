// Package rest is the HTTP client of the chat API used by the session core and devrimctl.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"devrim/internal/app/dto"
	"devrim/internal/infra/validation"
)

const maxBodySize = 4 << 20

type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	validator *validation.Validator
	logger    *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		http:      &http.Client{Timeout: 15 * time.Second},
		validator: validation.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "devrim-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// client errors say nothing about server health
		IsSuccessful: func(err error) bool {
			return err == nil || !(errors.Is(err, ErrUnavailable) || isTransport(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Token returns the bearer credential, shared with the realtime transport.
func (c *Client) Token() string { return c.token }

func (c *Client) BaseURL() string { return c.baseURL }

// Login is the result of an email/password sign-in.
type Login struct {
	Token string   `json:"token" validate:"required"`
	User  dto.User `json:"user"`
}

// Login exchanges credentials for a bearer token. The receiver's own token is
// not sent and not replaced; build a new Client with the returned one.
func (c *Client) Login(ctx context.Context, email, password string) (Login, error) {
	var out Login
	anon := *c
	anon.token = ""
	err := anon.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password}, &out, "")
	return out, err
}

// Logout revokes the client's token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, "")
}

func (c *Client) CurrentUser(ctx context.Context) (dto.User, error) {
	var out dto.User
	err := c.do(ctx, http.MethodGet, "/api/v1/users/me", nil, &out, "")
	return out, err
}

func (c *Client) SearchUsers(ctx context.Context, search string) ([]dto.User, error) {
	var out dto.UserList
	err := c.do(ctx, http.MethodGet, "/api/v1/users?search="+url.QueryEscape(search), nil, &out, "")
	return out.Items, err
}

func (c *Client) ListChats(ctx context.Context) ([]dto.Chat, error) {
	var out dto.ChatList
	err := c.do(ctx, http.MethodGet, "/api/v1/chats", nil, &out, "")
	return out.Items, err
}

func (c *Client) GetChat(ctx context.Context, chatID string) (dto.Chat, error) {
	var out dto.Chat
	err := c.do(ctx, http.MethodGet, "/api/v1/chats/"+url.PathEscape(chatID), nil, &out, "")
	return out, err
}

// AccessChat finds or creates the one-to-one chat with userID.
func (c *Client) AccessChat(ctx context.Context, userID string) (dto.Chat, error) {
	var out dto.Chat
	err := c.do(ctx, http.MethodPost, "/api/v1/chats", map[string]string{"userId": userID}, &out, uuid.NewString())
	return out, err
}

func (c *Client) ListMessages(ctx context.Context, chatID string, before time.Time, limit int) (dto.MessageList, error) {
	q := url.Values{}
	if !before.IsZero() {
		q.Set("before", before.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/messages/" + url.PathEscape(chatID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out dto.MessageList
	err := c.do(ctx, http.MethodGet, path, nil, &out, "")
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, chatID, content string) (dto.Message, error) {
	var out dto.Message
	body := map[string]string{"chatId": chatID, "content": content}
	err := c.do(ctx, http.MethodPost, "/api/v1/messages", body, &out, uuid.NewString())
	return out, err
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/messages/"+url.PathEscape(messageID), nil, nil, "")
}

func (c *Client) Pin(ctx context.Context, chatID, messageID string) (dto.Chat, error) {
	var out dto.Chat
	err := c.do(ctx, http.MethodPut, "/api/v1/chats/pin/"+url.PathEscape(chatID), map[string]string{"messageId": messageID}, &out, "")
	return out, err
}

func (c *Client) Unpin(ctx context.Context, chatID, messageID string) (dto.Chat, error) {
	var out dto.Chat
	err := c.do(ctx, http.MethodPut, "/api/v1/chats/unpin/"+url.PathEscape(chatID), map[string]string{"messageId": messageID}, &out, "")
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, idempotencyKey string) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, body, out, idempotencyKey)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any, idempotencyKey string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &transportError{err: err}
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Code = payload.Code
			if payload.Error != "" {
				apiErr.Message = payload.Error
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	if err := c.validator.Struct(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "rest: transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}
