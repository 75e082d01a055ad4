package realtime

import (
	"context"
	"encoding/json"
)

// Envelope types pushed to websocket clients.
const (
	TypeMessage        = "message"
	TypeMessageDeleted = "message.deleted"
	TypeChatUpdated    = "chat.updated"
	TypeTyping         = "typing"
	TypeStopTyping     = "stop_typing"
)

// Envelope is the wire frame exchanged over the realtime channel. Revision is the
// chat revision the frame reflects; zero for ephemeral frames such as typing.
type Envelope struct {
	Type     string          `json:"type"`
	ChatID   string          `json:"chatId"`
	Revision int64           `json:"revision,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type MessageDeletedData struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

type TypingData struct {
	UserID string `json:"userId"`
}

func NewEnvelope(kind, chatID string, revision int64, data any) (Envelope, error) {
	env := Envelope{Type: kind, ChatID: chatID, Revision: revision}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, err
		}
		env.Data = raw
	}
	return env, nil
}

// Pusher delivers an envelope to every live connection of the given users.
type Pusher interface {
	Push(userIDs []string, env Envelope) int
}

// Inbox reports whether an event id was already processed.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}
