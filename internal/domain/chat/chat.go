package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"devrim/internal/domain/shared/events"
	"devrim/internal/domain/user"
)

// SenderChatName marks a one-to-one chat. Any other name is a literal group name.
const SenderChatName = "sender"

// DefaultMaxPinned bounds the pinned set when no explicit limit is configured.
const DefaultMaxPinned = 50

var (
	ErrChatIDRequired    = errors.New("chat: id is required")
	ErrSelfChat          = errors.New("chat: cannot open a chat with yourself")
	ErrGroupNameRequired = errors.New("chat: group name is required")
	ErrGroupTooSmall     = errors.New("chat: group needs more than two members")
	ErrNotGroup          = errors.New("chat: operation requires a group chat")
	ErrNotMember         = errors.New("chat: user is not a member")
	ErrNotAdmin          = errors.New("chat: only the group admin can do that")
	ErrAlreadyMember     = errors.New("chat: user is already a member")
	ErrInvalidReference  = errors.New("chat: message does not belong to chat")
	ErrPinLimitReached   = errors.New("chat: pinned message limit reached")
	ErrNotFound          = errors.New("chat: not found")
	ErrConcurrentUpdate  = errors.New("chat: concurrent update detected")
)

type ID string

// Chat is a conversation between members. Pinned holds message references in pin order.
type Chat struct {
	ID              ID
	Name            string
	IsGroup         bool
	Members         []user.ID
	Admin           user.ID
	LatestMessageID MessageID
	Pinned          []MessageID
	Revision        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Chat, error)
	ListByMember(ctx context.Context, member user.ID) ([]*Chat, error)
	FindDirect(ctx context.Context, a, b user.ID) (*Chat, error)
	Save(ctx context.Context, chat *Chat) error
}

// NewDirectChat opens a one-to-one chat between a and b.
var directNamespace = uuid.MustParse("3c0b7d52-5d1e-4f6a-9b0e-2f4d8a61c7e3")

// DirectChatID is the id of the one-to-one chat between a and b. It does not
// depend on argument order, so two racing creations collide on save.
func DirectChatID(a, b user.ID) ID {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return ID(uuid.NewSHA1(directNamespace, []byte(string(lo)+"|"+string(hi))).String())
}

func NewDirectChat(id ID, a, b user.ID, now time.Time) (*Chat, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, ErrChatIDRequired
	}
	if a == "" || b == "" {
		return nil, ErrNotMember
	}
	if a == b {
		return nil, ErrSelfChat
	}
	now = normalize(now)
	c := &Chat{
		ID:        id,
		Name:      SenderChatName,
		Members:   []user.ID{a, b},
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.Record(c.updated("created", now))
	return c, nil
}

type GroupParams struct {
	ID      ID
	Name    string
	Admin   user.ID
	Members []user.ID
	Now     time.Time
}

// NewGroupChat creates a named group. The admin is always a member.
func NewGroupChat(params GroupParams) (*Chat, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrChatIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" || name == SenderChatName {
		return nil, ErrGroupNameRequired
	}
	if params.Admin == "" {
		return nil, ErrNotAdmin
	}
	members := []user.ID{params.Admin}
	for _, m := range params.Members {
		if m == "" || slices.Contains(members, m) {
			continue
		}
		members = append(members, m)
	}
	if len(members) < 3 {
		return nil, ErrGroupTooSmall
	}
	now := normalize(params.Now)
	c := &Chat{
		ID:        params.ID,
		Name:      name,
		IsGroup:   true,
		Members:   members,
		Admin:     params.Admin,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.Record(c.updated("created", now))
	return c, nil
}

func (c *Chat) IsDirect() bool {
	return !c.IsGroup && c.Name == SenderChatName
}

func (c *Chat) HasMember(id user.ID) bool {
	return slices.Contains(c.Members, id)
}

// OtherMember returns the counterpart of self in a one-to-one chat.
func (c *Chat) OtherMember(self user.ID) (user.ID, bool) {
	if !c.IsDirect() {
		return "", false
	}
	for _, m := range c.Members {
		if m != self {
			return m, true
		}
	}
	return "", false
}

func (c *Chat) IsPinned(id MessageID) bool {
	return slices.Contains(c.Pinned, id)
}

// Pin appends msg to the pinned set. It reports false when msg was already pinned.
func (c *Chat) Pin(msg *Message, limit int, now time.Time) (bool, error) {
	if msg == nil || msg.ChatID != c.ID {
		return false, ErrInvalidReference
	}
	if c.IsPinned(msg.ID) {
		return false, nil
	}
	if limit > 0 && len(c.Pinned) >= limit {
		return false, ErrPinLimitReached
	}
	c.Pinned = append(c.Pinned, msg.ID)
	now = c.touch(now)
	c.Record(c.updated("pinned", now))
	return true, nil
}

// Unpin removes msg from the pinned set. It reports false when msg was not pinned.
func (c *Chat) Unpin(msg *Message, now time.Time) (bool, error) {
	if msg == nil || msg.ChatID != c.ID {
		return false, ErrInvalidReference
	}
	idx := slices.Index(c.Pinned, msg.ID)
	if idx < 0 {
		return false, nil
	}
	c.Pinned = slices.Delete(c.Pinned, idx, idx+1)
	now = c.touch(now)
	c.Record(c.updated("unpinned", now))
	return true, nil
}

// RecordMessage makes msg the chat's latest message.
func (c *Chat) RecordMessage(msg *Message, now time.Time) error {
	if msg == nil || msg.ChatID != c.ID {
		return ErrInvalidReference
	}
	if !c.HasMember(msg.SenderID) {
		return ErrNotMember
	}
	c.LatestMessageID = msg.ID
	now = c.touch(now)
	c.Record(MessagePosted{
		ChatID:    string(c.ID),
		MessageID: string(msg.ID),
		SenderID:  string(msg.SenderID),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		Members:   memberStrings(c.Members),
		Revision:  c.Revision,
		At:        now,
	})
	return nil
}

// ForgetMessage drops every reference to a deleted message. fallback becomes the
// latest message when the deleted one was latest.
func (c *Chat) ForgetMessage(id MessageID, fallback MessageID, now time.Time) {
	if idx := slices.Index(c.Pinned, id); idx >= 0 {
		c.Pinned = slices.Delete(c.Pinned, idx, idx+1)
	}
	if c.LatestMessageID == id {
		c.LatestMessageID = fallback
	}
	now = c.touch(now)
	c.Record(MessageDeleted{
		ChatID:    string(c.ID),
		MessageID: string(id),
		Members:   memberStrings(c.Members),
		Revision:  c.Revision,
		At:        now,
	})
}

func (c *Chat) Rename(name string, by user.ID, now time.Time) error {
	if err := c.requireGroupAdmin(by); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" || name == SenderChatName {
		return ErrGroupNameRequired
	}
	if name == c.Name {
		return nil
	}
	c.Name = name
	now = c.touch(now)
	c.Record(c.updated("renamed", now))
	return nil
}

func (c *Chat) AddMember(id user.ID, by user.ID, now time.Time) error {
	if err := c.requireGroupAdmin(by); err != nil {
		return err
	}
	if id == "" {
		return ErrNotMember
	}
	if c.HasMember(id) {
		return ErrAlreadyMember
	}
	c.Members = append(c.Members, id)
	now = c.touch(now)
	c.Record(c.updated("member_added", now))
	return nil
}

// RemoveMember removes id from a group. Members may remove themselves; anyone else
// needs the admin. When the admin leaves the next member inherits the role.
func (c *Chat) RemoveMember(id user.ID, by user.ID, now time.Time) error {
	if !c.IsGroup {
		return ErrNotGroup
	}
	if id != by {
		if err := c.requireGroupAdmin(by); err != nil {
			return err
		}
	}
	idx := slices.Index(c.Members, id)
	if idx < 0 {
		return ErrNotMember
	}
	c.Members = slices.Delete(c.Members, idx, idx+1)
	if c.Admin == id && len(c.Members) > 0 {
		c.Admin = c.Members[0]
	}
	now = c.touch(now)
	ev := c.updated("member_removed", now)
	ev.Members = append(ev.Members, string(id))
	c.Record(ev)
	return nil
}

func (c *Chat) requireGroupAdmin(by user.ID) error {
	if !c.IsGroup {
		return ErrNotGroup
	}
	if !c.HasMember(by) {
		return ErrNotMember
	}
	if c.Admin != by {
		return ErrNotAdmin
	}
	return nil
}

func (c *Chat) touch(now time.Time) time.Time {
	now = normalize(now)
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Millisecond)
	}
	c.UpdatedAt = now
	c.Revision++
	return now
}

func (c *Chat) updated(reason string, now time.Time) ChatUpdated {
	return ChatUpdated{
		ChatID:   string(c.ID),
		Reason:   reason,
		Members:  memberStrings(c.Members),
		Pinned:   messageStrings(c.Pinned),
		Revision: c.Revision,
		At:       now,
	}
}

func normalize(now time.Time) time.Time {
	if now.IsZero() {
		now = time.Now()
	}
	return now.UTC().Truncate(time.Millisecond)
}

func memberStrings(ids []user.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func messageStrings(ids []MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
