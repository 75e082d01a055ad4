package chat

import "time"

const (
	EventChatUpdated    = "chat.updated"
	EventMessagePosted  = "chat.message_posted"
	EventMessageDeleted = "chat.message_deleted"
)

// ChatUpdated covers creation, renames, membership and pin changes.
type ChatUpdated struct {
	ChatID   string    `json:"chat_id"`
	Reason   string    `json:"reason"`
	Members  []string  `json:"members"`
	Pinned   []string  `json:"pinned"`
	Revision int64     `json:"revision"`
	At       time.Time `json:"at"`
}

func (e ChatUpdated) EventName() string     { return EventChatUpdated }
func (e ChatUpdated) AggregateID() string   { return e.ChatID }
func (e ChatUpdated) OccurredAt() time.Time { return e.At }
func (e ChatUpdated) Version() int64        { return e.Revision }

type MessagePosted struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Members   []string  `json:"members"`
	Revision  int64     `json:"revision"`
	At        time.Time `json:"at"`
}

func (e MessagePosted) EventName() string     { return EventMessagePosted }
func (e MessagePosted) AggregateID() string   { return e.ChatID }
func (e MessagePosted) OccurredAt() time.Time { return e.At }
func (e MessagePosted) Version() int64        { return e.Revision }

type MessageDeleted struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	Members   []string  `json:"members"`
	Revision  int64     `json:"revision"`
	At        time.Time `json:"at"`
}

func (e MessageDeleted) EventName() string     { return EventMessageDeleted }
func (e MessageDeleted) AggregateID() string   { return e.ChatID }
func (e MessageDeleted) OccurredAt() time.Time { return e.At }
func (e MessageDeleted) Version() int64        { return e.Revision }
