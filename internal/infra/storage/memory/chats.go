package memory

import (
	"context"
	"sort"
	"sync"

	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

// ChatRepository keeps chats in memory with revision-checked saves.
type ChatRepository struct {
	mu    sync.RWMutex
	items map[domainchat.ID]*domainchat.Chat
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{items: make(map[domainchat.ID]*domainchat.Chat)}
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return cloneChat(c), nil
}

func (r *ChatRepository) ListByMember(ctx context.Context, member domainuser.ID) ([]*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainchat.Chat, 0)
	for _, c := range r.items {
		if c.HasMember(member) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *ChatRepository) FindDirect(ctx context.Context, a, b domainuser.ID) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if c.IsDirect() && c.HasMember(a) && c.HasMember(b) {
			return cloneChat(c), nil
		}
	}
	return nil, domainchat.ErrNotFound
}

// Save rejects a chat whose revision is not newer than the stored one.
func (r *ChatRepository) Save(ctx context.Context, c *domainchat.Chat) error {
	if c == nil || c.ID == "" {
		return domainchat.ErrChatIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[c.ID]; ok && existing.Revision >= c.Revision {
		return domainchat.ErrConcurrentUpdate
	}
	r.items[c.ID] = cloneChat(c)
	return nil
}

func cloneChat(c *domainchat.Chat) *domainchat.Chat {
	if c == nil {
		return nil
	}
	return &domainchat.Chat{
		ID:              c.ID,
		Name:            c.Name,
		IsGroup:         c.IsGroup,
		Members:         append([]domainuser.ID(nil), c.Members...),
		Admin:           c.Admin,
		LatestMessageID: c.LatestMessageID,
		Pinned:          append([]domainchat.MessageID(nil), c.Pinned...),
		Revision:        c.Revision,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

var _ domainchat.Repository = (*ChatRepository)(nil)
