package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenPrefix marks issued bearer tokens so they are recognisable in configs
// and secret scanners. Fixture tokens are used verbatim.
const TokenPrefix = "drm_"

const defaultTokenBytes = 32

// RandomTokenGenerator issues opaque bearer tokens: TokenPrefix followed by
// Size random bytes, base64url without padding.
type RandomTokenGenerator struct {
	Size int
}

func (g RandomTokenGenerator) NewToken() (string, error) {
	n := g.Size
	if n <= 0 {
		n = defaultTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: read random token: %w", err)
	}
	return TokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
