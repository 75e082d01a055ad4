package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"
)

// Upgrader takes over an authenticated request as a realtime connection.
type Upgrader interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

type RealtimeHandler struct {
	Hub    Upgrader
	Logger *slog.Logger
}

func (h RealtimeHandler) Connect(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime unavailable", "code": CodeInternal})
		return
	}
	// Serve has already answered the handshake when the upgrade fails.
	if err := h.Hub.Serve(c.Writer, c.Request, p.ID); err != nil && h.Logger != nil {
		h.Logger.Debug("websocket upgrade failed", "user_id", p.ID, "error", err)
	}
}

var _ RealtimeHTTP = RealtimeHandler{}
