package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"devrim/internal/domain/user"
)

// MaxContentLength is the longest message body accepted, in runes.
const MaxContentLength = 4000

var (
	ErrMessageIDRequired = errors.New("chat: message id is required")
	ErrContentRequired   = errors.New("chat: message content is required")
	ErrContentTooLong    = errors.New("chat: message content is too long")
	ErrMessageNotFound   = errors.New("chat: message not found")
	ErrNotSender         = errors.New("chat: only the sender can delete a message")
)

type MessageID string

type Message struct {
	ID        MessageID
	ChatID    ID
	SenderID  user.ID
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListOptions pages backwards through a chat's history.
type ListOptions struct {
	Before time.Time
	Limit  int
}

// MessageRepository returns lists ordered oldest to newest.
type MessageRepository interface {
	ByID(ctx context.Context, id MessageID) (*Message, error)
	ByIDs(ctx context.Context, ids []MessageID) ([]*Message, error)
	ListByChat(ctx context.Context, chatID ID, opts ListOptions) ([]*Message, error)
	Latest(ctx context.Context, chatID ID) (*Message, error)
	Save(ctx context.Context, msg *Message) error
	Delete(ctx context.Context, id MessageID) error
}

type PostParams struct {
	ID       MessageID
	ChatID   ID
	SenderID user.ID
	Content  string
	Now      time.Time
}

func NewMessage(params PostParams) (*Message, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrMessageIDRequired
	}
	if strings.TrimSpace(string(params.ChatID)) == "" {
		return nil, ErrChatIDRequired
	}
	if params.SenderID == "" {
		return nil, ErrNotMember
	}
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	now := normalize(params.Now)
	return &Message{
		ID:        params.ID,
		ChatID:    params.ChatID,
		SenderID:  params.SenderID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanDelete reports whether by may delete the message.
func (m *Message) CanDelete(by user.ID) error {
	if m.SenderID != by {
		return ErrNotSender
	}
	return nil
}
