package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"devrim/internal/app/services/identity"
	domainuser "devrim/internal/domain/user"
)

// Fixture provisions one account and its bearer token. Registration is handled
// by a separate service, so local and test deployments seed users this way.
type Fixture struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
	Token   string `json:"token"`
	// Password enables email login for the account; it is stored hashed.
	Password string `json:"password"`
}

// LoadFixtures accepts inline JSON or a path to a JSON file. Empty input yields no fixtures.
func LoadFixtures(raw string) ([]Fixture, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	data := []byte(raw)
	if !strings.HasPrefix(raw, "[") {
		fileData, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("read users fixtures: %w", err)
		}
		data = fileData
	}
	var out []Fixture
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode users fixtures: %w", err)
	}
	return out, nil
}

// Seed saves every fixture user and issues its session. A fixture without token
// only creates the user.
func Seed(ctx context.Context, users domainuser.Repository, ident *identity.Service, fixtures []Fixture) error {
	for _, f := range fixtures {
		var hash string
		if f.Password != "" && ident != nil && ident.Passwords != nil {
			h, err := ident.Passwords.Hash(f.Password)
			if err != nil {
				return fmt.Errorf("fixture %q password: %w", f.ID, err)
			}
			hash = h
		}
		u, err := domainuser.NewUser(domainuser.CreateParams{
			ID:           domainuser.ID(f.ID),
			Name:         f.Name,
			Email:        f.Email,
			Picture:      f.Picture,
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("fixture %q: %w", f.ID, err)
		}
		if err := users.Save(ctx, u); err != nil {
			return fmt.Errorf("fixture %q: %w", f.ID, err)
		}
		if f.Token == "" || ident == nil {
			continue
		}
		if _, err := ident.IssueSession(ctx, u.ID, f.Token); err != nil {
			return fmt.Errorf("fixture %q session: %w", f.ID, err)
		}
	}
	return nil
}
