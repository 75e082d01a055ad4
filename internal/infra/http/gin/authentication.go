package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"devrim/internal/app/services/identity"
	domainauth "devrim/internal/domain/auth"
)

const principalContextKey = "devrim.principal"

type principal struct {
	ID    string
	Name  string
	Token string
}

// AuthMiddleware resolves the bearer token when present. Endpoints decide
// themselves whether a principal is required.
type AuthMiddleware struct {
	Service *identity.Service
	Logger  *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractToken(c)
	if token == "" || m.Service == nil {
		c.Next()
		return
	}
	resolved, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) && m.Logger != nil {
			m.Logger.Debug("token validation failed", "token", domainauth.Token(token).Hint(), "error", err)
		}
		c.Next()
		return
	}
	p := principal{ID: string(resolved.User.ID), Name: resolved.User.Name, Token: token}
	c.Set(principalContextKey, p)
	ctx := identity.WithPrincipal(c.Request.Context(), identity.Principal{UserID: resolved.User.ID, Token: token})
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required", "code": "unauthenticated"})
		return principal{}, false
	}
	return p, true
}

// extractToken reads the Authorization header. Browsers cannot set headers on a
// websocket handshake, so /ws also accepts a token query parameter.
func extractToken(c *gin.Context) string {
	if token := extractBearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if c.FullPath() == "/ws" {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
