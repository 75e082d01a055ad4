package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "devrim/internal/domain/auth"
	domainuser "devrim/internal/domain/user"
)

var ErrInvalidCredentials = errors.New("identity: invalid credentials")

type TokenGenerator interface {
	NewToken() (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Service resolves bearer tokens into users. Accounts are provisioned elsewhere.
type Service struct {
	Users      domainuser.Repository
	Sessions   domainauth.SessionStore
	Tokens     TokenGenerator
	Passwords  PasswordHasher
	SessionTTL time.Duration
	Logger     *slog.Logger
}

type ResolveResult struct {
	User    *domainuser.User
	Session *domainauth.Session
}

type LoginResult struct {
	User  *domainuser.User
	Token string
}

// IssueSession creates a session for userID. An empty token asks the generator for one.
func (s *Service) IssueSession(ctx context.Context, userID domainuser.ID, token string) (string, error) {
	if err := s.ensureDependencies(); err != nil {
		return "", err
	}
	if _, err := s.Users.ByID(ctx, userID); err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		if s.Tokens == nil {
			return "", errors.New("identity: token generator required")
		}
		generated, err := s.Tokens.NewToken()
		if err != nil {
			return "", err
		}
		token = generated
	}
	session, err := domainauth.NewSession(domainauth.CreateSessionParams{
		Token:  domainauth.Token(token),
		UserID: userID,
		TTL:    s.sessionTTL(),
		Now:    time.Now(),
	})
	if err != nil {
		return "", err
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return "", err
	}
	if s.Logger != nil {
		s.Logger.Debug("session issued", "user_id", userID, "expires_at", session.ExpiresAt)
	}
	return token, nil
}

// Login checks an email/password pair and issues a fresh session. Unknown
// emails and accounts without a password fail like a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if s.Passwords == nil || s.Tokens == nil {
		return nil, errors.New("identity: password login not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Users.ByEmail(ctx, email)
	if errors.Is(err, domainuser.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" || s.Passwords.Compare(user.PasswordHash, password) != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := s.IssueSession(ctx, user.ID, "")
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user authenticated", "user_id", user.ID)
	}
	return &LoginResult{User: user, Token: token}, nil
}

func (s *Service) ResolveToken(ctx context.Context, token string) (*ResolveResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainauth.ErrTokenRequired
	}
	session, err := s.Sessions.Get(ctx, domainauth.Token(token))
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		_ = s.Sessions.Delete(ctx, session.Token)
		return nil, domainauth.ErrSessionNotFound
	}
	user, err := s.Users.ByID(ctx, session.UserID)
	if err != nil {
		_ = s.Sessions.Delete(ctx, session.Token)
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, domainauth.ErrSessionNotFound
		}
		return nil, err
	}
	return &ResolveResult{User: user, Session: session}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.ensureDependencies(); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, domainauth.Token(token))
}

func (s *Service) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return 24 * time.Hour
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Users == nil:
		return errors.New("identity: user repository required")
	case s.Sessions == nil:
		return errors.New("identity: session store required")
	default:
		return nil
	}
}
