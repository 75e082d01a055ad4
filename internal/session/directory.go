package session

import (
	"strings"
	"time"

	"devrim/internal/app/dto"
	domainuser "devrim/internal/domain/user"
)

// oneToOneName marks a chat whose label is the other member's name.
const oneToOneName = "sender"

const unknownUser = "Unknown user"

// Entry is one row of the chat directory.
type Entry struct {
	ChatID       string
	Label        string
	Preview      string
	Avatar       string
	LastActivity time.Time
	IsGroup      bool
	Unread       int
	Active       bool
}

// Label names c from the point of view of the user with id me.
func Label(c dto.Chat, me string) string {
	if c.ChatName != oneToOneName {
		return c.ChatName
	}
	if other, ok := otherMember(c, me); ok && other.Name != "" {
		return other.Name
	}
	return unknownUser
}

// Preview renders the latest message as "given_name: content".
func Preview(c dto.Chat) string {
	if c.LatestMessage == nil {
		return ""
	}
	return senderName(c.LatestMessage.Sender) + ": " + c.LatestMessage.Content
}

// Avatar falls back to the anonymous picture when the member list is missing.
func Avatar(c dto.Chat, me string) string {
	if !c.IsGroupChat {
		if other, ok := otherMember(c, me); ok && other.Picture != "" {
			return other.Picture
		}
	}
	return domainuser.DefaultPicture
}

func otherMember(c dto.Chat, me string) (dto.User, bool) {
	for _, u := range c.Users {
		if u.ID != me {
			return u, true
		}
	}
	return dto.User{}, false
}

func senderName(u dto.User) string {
	if u.GivenName != "" {
		return u.GivenName
	}
	if first, _, _ := strings.Cut(strings.TrimSpace(u.Name), " "); first != "" {
		return first
	}
	return unknownUser
}

// Directory lists every known chat, most recently active first.
func (s *Store) Directory() []Entry {
	chats := s.Chats()
	me := s.Me().ID
	active := s.Active()
	out := make([]Entry, 0, len(chats))
	for _, c := range chats {
		out = append(out, Entry{
			ChatID:       c.ID,
			Label:        Label(c, me),
			Preview:      Preview(c),
			Avatar:       Avatar(c, me),
			LastActivity: c.UpdatedAt,
			IsGroup:      c.IsGroupChat,
			Unread:       s.Unread(c.ID),
			Active:       c.ID == active,
		})
	}
	return out
}
