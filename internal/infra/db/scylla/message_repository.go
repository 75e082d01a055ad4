package scylla

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/gocql/gocql"

	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

var ErrSessionNotInitialized = errors.New("scylla: session not initialized")

// MessageRepository keeps messages in two tables: one partitioned per chat for
// history pages and one keyed by id for lookups and deletes.
type MessageRepository struct {
	session *gocql.Session
}

func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

const messageColumns = `message_id, chat_id, sender_id, content, created_at, updated_at`

func (r *MessageRepository) ByID(ctx context.Context, id domainchat.MessageID) (*domainchat.Message, error) {
	if r.session == nil {
		return nil, ErrSessionNotInitialized
	}
	var row messageRow
	err := r.session.
		Query(`SELECT `+messageColumns+` FROM messages_by_id WHERE message_id = ? LIMIT 1`, string(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(row.targets()...)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, domainchat.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toAggregate(), nil
}

func (r *MessageRepository) ByIDs(ctx context.Context, ids []domainchat.MessageID) ([]*domainchat.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if r.session == nil {
		return nil, ErrSessionNotInitialized
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, string(id))
	}
	iter := r.session.
		Query(`SELECT `+messageColumns+` FROM messages_by_id WHERE message_id IN ?`, keys).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	return collect(iter)
}

// ListByChat reads the newest page before opts.Before and returns it oldest first.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID domainchat.ID, opts domainchat.ListOptions) ([]*domainchat.Message, error) {
	if r.session == nil {
		return nil, ErrSessionNotInitialized
	}
	var q *gocql.Query
	if opts.Before.IsZero() {
		q = r.session.Query(`SELECT `+messageColumns+` FROM messages_by_chat WHERE chat_id = ?`, string(chatID))
	} else {
		q = r.session.Query(`SELECT `+messageColumns+` FROM messages_by_chat WHERE chat_id = ? AND created_at < ?`, string(chatID), opts.Before.UTC())
	}
	if opts.Limit > 0 {
		q = q.PageSize(opts.Limit)
	}
	iter := q.WithContext(ctx).Consistency(gocql.One).Iter()
	out, err := collectLimit(iter, opts.Limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (r *MessageRepository) Latest(ctx context.Context, chatID domainchat.ID) (*domainchat.Message, error) {
	page, err := r.ListByChat(ctx, chatID, domainchat.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, domainchat.ErrMessageNotFound
	}
	return page[0], nil
}

func (r *MessageRepository) Save(ctx context.Context, m *domainchat.Message) error {
	if m == nil || m.ID == "" {
		return domainchat.ErrMessageIDRequired
	}
	if r.session == nil {
		return ErrSessionNotInitialized
	}
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO messages_by_chat (chat_id, created_at, message_id, sender_id, content, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ChatID), m.CreatedAt.UTC(), string(m.ID), string(m.SenderID), m.Content, m.UpdatedAt.UTC())
	batch.Query(`INSERT INTO messages_by_id (message_id, chat_id, sender_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ID), string(m.ChatID), string(m.SenderID), m.Content, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	return r.session.ExecuteBatch(batch)
}

func (r *MessageRepository) Delete(ctx context.Context, id domainchat.MessageID) error {
	existing, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM messages_by_chat WHERE chat_id = ? AND created_at = ? AND message_id = ?`,
		string(existing.ChatID), existing.CreatedAt.UTC(), string(existing.ID))
	batch.Query(`DELETE FROM messages_by_id WHERE message_id = ?`, string(existing.ID))
	return r.session.ExecuteBatch(batch)
}

type messageRow struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *messageRow) targets() []any {
	return []any{&r.ID, &r.ChatID, &r.SenderID, &r.Content, &r.CreatedAt, &r.UpdatedAt}
}

func (r messageRow) toAggregate() *domainchat.Message {
	return &domainchat.Message{
		ID:        domainchat.MessageID(r.ID),
		ChatID:    domainchat.ID(r.ChatID),
		SenderID:  domainuser.ID(r.SenderID),
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func collect(iter *gocql.Iter) ([]*domainchat.Message, error) {
	return collectLimit(iter, 0)
}

func collectLimit(iter *gocql.Iter, limit int) ([]*domainchat.Message, error) {
	var (
		row messageRow
		out []*domainchat.Message
	)
	for iter.Scan(row.targets()...) {
		out = append(out, row.toAggregate())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)
