package mongo

import (
	"context"
	"errors"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	col := db.Collection("agg_message")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return &MessageRepository{col: col}
}

func (r *MessageRepository) ByID(ctx context.Context, id domainchat.MessageID) (*domainchat.Message, error) {
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *MessageRepository) ByIDs(ctx context.Context, ids []domainchat.MessageID) ([]*domainchat.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make(bson.A, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": raw}}, nil)
}

// ListByChat reads the newest page before opts.Before and returns it oldest first.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID domainchat.ID, opts domainchat.ListOptions) ([]*domainchat.Message, error) {
	filter := bson.M{"chat_id": string(chatID)}
	if !opts.Before.IsZero() {
		filter["created_at"] = bson.M{"$lt": opts.Before.UnixMilli()}
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	out, err := r.find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (r *MessageRepository) Latest(ctx context.Context, chatID domainchat.ID) (*domainchat.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"chat_id": string(chatID)}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *MessageRepository) Save(ctx context.Context, m *domainchat.Message) error {
	if m == nil || m.ID == "" {
		return domainchat.ErrMessageIDRequired
	}
	doc := newMessageDocument(m)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *MessageRepository) Delete(ctx context.Context, id domainchat.MessageID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainchat.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainchat.Message, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainchat.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type messageDocument struct {
	ID        string `bson:"_id"`
	ChatID    string `bson:"chat_id"`
	SenderID  string `bson:"sender_id"`
	Content   string `bson:"content"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
}

func newMessageDocument(m *domainchat.Message) messageDocument {
	return messageDocument{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		SenderID:  string(m.SenderID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UnixMilli(),
		UpdatedAt: m.UpdatedAt.UnixMilli(),
	}
}

func (d messageDocument) toAggregate() *domainchat.Message {
	return &domainchat.Message{
		ID:        domainchat.MessageID(d.ID),
		ChatID:    domainchat.ID(d.ChatID),
		SenderID:  domainuser.ID(d.SenderID),
		Content:   d.Content,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)
