package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"devrim/internal/app/services/identity"
	domainauth "devrim/internal/domain/auth"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
	"devrim/internal/infra/obs"
	"devrim/internal/infra/validation"
)

const (
	CodeInvalidRequest   = "invalid_request"
	CodeUnauthenticated  = "unauthenticated"
	CodeBadCredentials   = "invalid_credentials"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeInvalidReference = "invalid_reference"
	CodePinLimitReached  = "pin_limit_reached"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{validation.ErrInvalid, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrChatIDRequired, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrMessageIDRequired, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrContentRequired, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrContentTooLong, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrSelfChat, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrGroupNameRequired, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrGroupTooSmall, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrNotGroup, http.StatusBadRequest, CodeInvalidRequest},
	{domainchat.ErrAlreadyMember, http.StatusBadRequest, CodeInvalidRequest},
	{domainuser.ErrIDRequired, http.StatusBadRequest, CodeInvalidRequest},
	{identity.ErrInvalidCredentials, http.StatusUnauthorized, CodeBadCredentials},
	{identity.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated},
	{domainauth.ErrSessionNotFound, http.StatusUnauthorized, CodeUnauthenticated},
	{identity.ErrActorMismatch, http.StatusForbidden, CodeForbidden},
	{domainchat.ErrNotMember, http.StatusForbidden, CodeForbidden},
	{domainchat.ErrNotAdmin, http.StatusForbidden, CodeForbidden},
	{domainchat.ErrNotSender, http.StatusForbidden, CodeForbidden},
	{domainchat.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domainchat.ErrMessageNotFound, http.StatusNotFound, CodeNotFound},
	{domainuser.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domainchat.ErrConcurrentUpdate, http.StatusConflict, CodeConflict},
	{domainchat.ErrInvalidReference, http.StatusUnprocessableEntity, CodeInvalidReference},
	{domainchat.ErrPinLimitReached, http.StatusUnprocessableEntity, CodePinLimitReached},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// respondError writes {"error", "code"}. Internal errors are logged and hidden.
func respondError(c *gin.Context, logger *slog.Logger, err error, msg string, attrs ...any) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			attrs = append(attrs, "error", err, "request_id", obs.RequestIDFromContext(c.Request.Context()))
			logger.ErrorContext(c.Request.Context(), msg, attrs...)
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": CodeInvalidRequest})
}
