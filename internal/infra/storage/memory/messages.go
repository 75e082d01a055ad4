package memory

import (
	"context"
	"slices"
	"sync"

	domainchat "devrim/internal/domain/chat"
)

type MessageRepository struct {
	mu     sync.RWMutex
	items  map[domainchat.MessageID]*domainchat.Message
	byChat map[domainchat.ID][]domainchat.MessageID
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		items:  make(map[domainchat.MessageID]*domainchat.Message),
		byChat: make(map[domainchat.ID][]domainchat.MessageID),
	}
}

func (r *MessageRepository) ByID(ctx context.Context, id domainchat.MessageID) (*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, domainchat.ErrMessageNotFound
	}
	copyMsg := *m
	return &copyMsg, nil
}

// ByIDs returns the messages that exist; unknown ids are skipped.
func (r *MessageRepository) ByIDs(ctx context.Context, ids []domainchat.MessageID) ([]*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainchat.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.items[id]; ok {
			copyMsg := *m
			out = append(out, &copyMsg)
		}
	}
	return out, nil
}

func (r *MessageRepository) ListByChat(ctx context.Context, chatID domainchat.ID, opts domainchat.ListOptions) ([]*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byChat[chatID]
	out := make([]*domainchat.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		m := r.items[ids[i]]
		if !opts.Before.IsZero() && !m.CreatedAt.Before(opts.Before) {
			continue
		}
		copyMsg := *m
		out = append(out, &copyMsg)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *MessageRepository) Latest(ctx context.Context, chatID domainchat.ID) (*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byChat[chatID]
	if len(ids) == 0 {
		return nil, domainchat.ErrMessageNotFound
	}
	copyMsg := *r.items[ids[len(ids)-1]]
	return &copyMsg, nil
}

// Save inserts or replaces m. Chat order follows CreatedAt, ties keep insertion order.
func (r *MessageRepository) Save(ctx context.Context, m *domainchat.Message) error {
	if m == nil || m.ID == "" {
		return domainchat.ErrMessageIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copyMsg := *m
	if _, exists := r.items[m.ID]; !exists {
		ids := r.byChat[m.ChatID]
		pos := len(ids)
		for pos > 0 && r.items[ids[pos-1]].CreatedAt.After(m.CreatedAt) {
			pos--
		}
		r.byChat[m.ChatID] = slices.Insert(ids, pos, m.ID)
	}
	r.items[m.ID] = &copyMsg
	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, id domainchat.MessageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return domainchat.ErrMessageNotFound
	}
	delete(r.items, id)
	ids := r.byChat[m.ChatID]
	for i, candidate := range ids {
		if candidate == id {
			r.byChat[m.ChatID] = slices.Delete(ids, i, i+1)
			break
		}
	}
	return nil
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)
