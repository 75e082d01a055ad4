package session

import (
	"errors"

	clientrealtime "devrim/internal/client/realtime"
	"devrim/internal/client/rest"
)

// Server-reported and locally detected failures share the client sentinels so
// callers check one value regardless of where the rejection happened.
var (
	ErrInvalidReference     = rest.ErrInvalidReference
	ErrPinLimitReached      = rest.ErrPinLimitReached
	ErrNotFound             = rest.ErrNotFound
	ErrTransportUnavailable = clientrealtime.ErrTransportUnavailable

	ErrNoActiveChat = errors.New("session: no chat selected")
	ErrClosed       = errors.New("session: closed")
	ErrEmptyMessage = errors.New("session: message content is empty")
)
