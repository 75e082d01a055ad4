package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired   = errors.New("user: id is required")
	ErrNameRequired = errors.New("user: name is required")
	ErrNotFound     = errors.New("user: not found")
)

// DefaultPicture is served for accounts that never uploaded an avatar.
const DefaultPicture = "https://icon-library.com/images/anonymous-avatar-icon/anonymous-avatar-icon-25.jpg"

type ID string

// User is the identity shared with the chat subsystem. Chat code never mutates it.
type User struct {
	ID        ID
	Name      string
	GivenName string
	Email     string
	Picture   string
	// PasswordHash is empty for accounts that only hold issued tokens.
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByIDs(ctx context.Context, ids []ID) ([]*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Search(ctx context.Context, query string, exclude ID, limit int) ([]*User, error)
	Save(ctx context.Context, user *User) error
}

type CreateParams struct {
	ID           ID
	Name         string
	GivenName    string
	Email        string
	Picture      string
	PasswordHash string
	CreatedAt    time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	given := strings.TrimSpace(params.GivenName)
	if given == "" {
		given = strings.Fields(name)[0]
	}
	picture := strings.TrimSpace(params.Picture)
	if picture == "" {
		picture = DefaultPicture
	}

	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &User{
		ID:           ID(id),
		Name:         name,
		GivenName:    given,
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		Picture:      picture,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Matches reports whether the user's name or email contains query, case-insensitively.
func (u *User) Matches(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Name), query) || strings.Contains(u.Email, query)
}
