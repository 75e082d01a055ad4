package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"devrim/internal/app/dto"
	"devrim/internal/app/services/identity"
)

type AuthHandler struct {
	Service *identity.Service
	Logger  *slog.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  dto.User `json:"user"`
}

func (h AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		badRequest(c, "email and password are required")
		return
	}
	res, err := h.Service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.Logger, err, "login")
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: res.Token, User: dto.MapUser(res.User)})
}

func (h AuthHandler) Logout(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if err := h.Service.Logout(c.Request.Context(), p.Token); err != nil {
		respondError(c, h.Logger, err, "logout", "user_id", p.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

var _ AuthHTTP = AuthHandler{}
