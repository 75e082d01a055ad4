package session

import (
	"slices"
	"sort"
	"sync"

	"devrim/internal/app/dto"
)

// Store is the mutable client state that REST responses and pushed events are
// both applied to. Every method is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	me       dto.User
	chats    map[string]dto.Chat
	messages map[string][]dto.Message
	// owner maps a cached message id to its chat.
	owner      map[string]string
	tombstones map[string]struct{}
	unread     map[string]int
	active     string
}

func NewStore(me dto.User) *Store {
	return &Store{
		me:         me,
		chats:      make(map[string]dto.Chat),
		messages:   make(map[string][]dto.Message),
		owner:      make(map[string]string),
		tombstones: make(map[string]struct{}),
		unread:     make(map[string]int),
	}
}

func (s *Store) Me() dto.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}

// PutChat stores c unless a higher revision is already held. Equal revisions
// overwrite.
func (s *Store) PutChat(c dto.Chat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.chats[c.ID]; ok && held.Revision > c.Revision {
		return false
	}
	c.Pinned = slices.DeleteFunc(slices.Clone(c.Pinned), func(m dto.Message) bool {
		_, dead := s.tombstones[m.ID]
		return dead
	})
	if c.LatestMessage != nil {
		if _, dead := s.tombstones[c.LatestMessage.ID]; dead {
			c.LatestMessage = s.lastCachedLocked(c.ID)
		}
	}
	s.chats[c.ID] = c
	return true
}

func (s *Store) Chat(id string) (dto.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	return c, ok
}

func (s *Store) Chats() []dto.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dto.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c)
	}
	sortChats(out)
	return out
}

// SetMessages replaces the cached list of chatID with msgs, skipping deleted ids.
func (s *Store) SetMessages(chatID string, msgs []dto.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[chatID] {
		delete(s.owner, m.ID)
	}
	list := make([]dto.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, dead := s.tombstones[m.ID]; dead {
			continue
		}
		list = append(list, m)
		s.owner[m.ID] = chatID
	}
	sortMessages(list)
	s.messages[chatID] = list
}

// MergeMessages adds an older page in front of the cached list.
func (s *Store) MergeMessages(chatID string, msgs []dto.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.upsertLocked(chatID, m)
	}
}

func (s *Store) Loaded(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[chatID]
	return ok
}

// Messages returns a copy of the cached list of chatID, oldest first.
func (s *Store) Messages(chatID string) []dto.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages[chatID])
}

// Owner reports which cached chat holds messageID.
func (s *Store) Owner(messageID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.owner[messageID]
	return id, ok
}

// AddMessage applies a sent or pushed message, last write winning on the same
// id. Other chats' lists only change once they were loaded. Messages already
// deleted are ignored. It reports whether m was new.
func (s *Store) AddMessage(m dto.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dead := s.tombstones[m.ID]; dead {
		return false
	}
	_, known := s.owner[m.ID]
	if c, ok := s.chats[m.Chat]; ok && c.LatestMessage != nil && c.LatestMessage.ID == m.ID {
		known = true
	}
	// The active chat gets a list on its first message even if it was
	// selected without loading history.
	if _, loaded := s.messages[m.Chat]; loaded || m.Chat == s.active {
		s.upsertLocked(m.Chat, m)
	}

	if c, ok := s.chats[m.Chat]; ok {
		if c.LatestMessage == nil || !m.CreatedAt.Before(c.LatestMessage.CreatedAt) {
			latest := m
			c.LatestMessage = &latest
		}
		if m.CreatedAt.After(c.UpdatedAt) {
			c.UpdatedAt = m.CreatedAt
		}
		s.chats[m.Chat] = c
	}
	if !known && m.Chat != s.active && m.Sender.ID != s.me.ID {
		s.unread[m.Chat]++
	}
	return !known
}

// RemoveMessage drops messageID from its chat's list and pins and remembers
// the id so a late push cannot bring it back. chatID may be empty when the
// owner is unknown.
func (s *Store) RemoveMessage(chatID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tombstones[messageID] = struct{}{}
	if owner, ok := s.owner[messageID]; ok {
		chatID = owner
		delete(s.owner, messageID)
	}
	targets := []string{chatID}
	if chatID == "" {
		targets = targets[:0]
		for id := range s.chats {
			targets = append(targets, id)
		}
	}
	for _, id := range targets {
		if list, ok := s.messages[id]; ok {
			s.messages[id] = slices.DeleteFunc(list, func(m dto.Message) bool { return m.ID == messageID })
		}
		c, ok := s.chats[id]
		if !ok {
			continue
		}
		c.Pinned = slices.DeleteFunc(slices.Clone(c.Pinned), func(m dto.Message) bool { return m.ID == messageID })
		if c.LatestMessage != nil && c.LatestMessage.ID == messageID {
			c.LatestMessage = s.lastCachedLocked(id)
		}
		s.chats[id] = c
	}
}

func (s *Store) Deleted(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, dead := s.tombstones[messageID]
	return dead
}

// SetActive records the selection and clears its unread counter.
func (s *Store) SetActive(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = chatID
	if chatID != "" {
		delete(s.unread, chatID)
	}
}

func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) Unread(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[chatID]
}

func (s *Store) upsertLocked(chatID string, m dto.Message) {
	if _, dead := s.tombstones[m.ID]; dead {
		return
	}
	list := s.messages[chatID]
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			s.messages[chatID] = list
			return
		}
	}
	list = append(list, m)
	sortMessages(list)
	s.messages[chatID] = list
	s.owner[m.ID] = chatID
}

func (s *Store) lastCachedLocked(chatID string) *dto.Message {
	list := s.messages[chatID]
	if len(list) == 0 {
		return nil
	}
	last := list[len(list)-1]
	return &last
}

func sortMessages(list []dto.Message) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func sortChats(list []dto.Chat) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
