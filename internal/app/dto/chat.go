package dto

import (
	"time"

	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

// Chat is the populated chat document served to clients.
type Chat struct {
	ID            string    `json:"_id" validate:"required"`
	ChatName      string    `json:"chatName" validate:"required"`
	IsGroupChat   bool      `json:"isGroupChat"`
	Users         []User    `json:"users" validate:"omitempty,dive"`
	LatestMessage *Message  `json:"latestMessage,omitempty" validate:"omitempty"`
	GroupAdmin    *User     `json:"groupAdmin,omitempty" validate:"omitempty"`
	Pinned        []Message `json:"pinned" validate:"dive"`
	Revision      int64     `json:"revision" validate:"gte=1"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" validate:"required"`
}

type ChatList struct {
	Items []Chat `json:"items" validate:"dive"`
}

// Message is a chat message with its sender populated.
type Message struct {
	ID        string    `json:"_id" validate:"required"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content" validate:"required"`
	Chat      string    `json:"chat" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type MessageList struct {
	Items      []Message `json:"items" validate:"dive"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Directory resolves the user and message references of chats.
type Directory struct {
	Users    map[domainuser.ID]*domainuser.User
	Messages map[domainchat.MessageID]*domainchat.Message
}

func (d Directory) user(id domainuser.ID) User {
	if u, ok := d.Users[id]; ok {
		return MapUser(u)
	}
	return User{ID: string(id), Name: "Unknown user", Picture: domainuser.DefaultPicture}
}

func MapMessage(m *domainchat.Message, sender User) Message {
	if m == nil {
		return Message{}
	}
	return Message{
		ID:        string(m.ID),
		Sender:    sender,
		Content:   m.Content,
		Chat:      string(m.ChatID),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (d Directory) Message(m *domainchat.Message) Message {
	return MapMessage(m, d.user(m.SenderID))
}

// Chat populates c. Pinned references that no longer resolve are skipped.
func (d Directory) Chat(c *domainchat.Chat) Chat {
	out := Chat{
		ID:          string(c.ID),
		ChatName:    c.Name,
		IsGroupChat: c.IsGroup,
		Users:       make([]User, 0, len(c.Members)),
		Pinned:      make([]Message, 0, len(c.Pinned)),
		Revision:    c.Revision,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, id := range c.Members {
		out.Users = append(out.Users, d.user(id))
	}
	if c.Admin != "" {
		admin := d.user(c.Admin)
		out.GroupAdmin = &admin
	}
	if m, ok := d.Messages[c.LatestMessageID]; ok {
		latest := d.Message(m)
		out.LatestMessage = &latest
	}
	for _, id := range c.Pinned {
		if m, ok := d.Messages[id]; ok {
			out.Pinned = append(out.Pinned, d.Message(m))
		}
	}
	return out
}
