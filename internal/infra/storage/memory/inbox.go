package memory

import (
	"context"
	"sync"
	"time"
)

// Inbox remembers processed event ids for Window.
type Inbox struct {
	Window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewInbox(window time.Duration) *Inbox {
	return &Inbox{Window: window, seen: make(map[string]time.Time)}
}

func (i *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	if at, ok := i.seen[eventID]; ok && (i.Window <= 0 || now.Sub(at) < i.Window) {
		return true, nil
	}
	i.seen[eventID] = now
	if len(i.seen) > 10000 {
		i.evict(now)
	}
	return false, nil
}

func (i *Inbox) evict(now time.Time) {
	for id, at := range i.seen {
		if i.Window > 0 && now.Sub(at) >= i.Window {
			delete(i.seen, id)
		}
	}
}
