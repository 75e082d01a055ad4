package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	col := db.Collection("agg_chat")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "members", Value: 1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "name", Value: 1}, {Key: "members", Value: 1}}},
	})
	return &ChatRepository{col: col}
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	var doc chatDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) ListByMember(ctx context.Context, member domainuser.ID) ([]*domainchat.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"members": string(member)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []chatDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainchat.Chat, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *ChatRepository) FindDirect(ctx context.Context, a, b domainuser.ID) (*domainchat.Chat, error) {
	filter := bson.M{
		"name":     domainchat.SenderChatName,
		"is_group": false,
		"members":  bson.M{"$all": bson.A{string(a), string(b)}},
	}
	var doc chatDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save upserts c only when the stored revision is older; otherwise the upsert
// collides on _id and surfaces as ErrConcurrentUpdate.
func (r *ChatRepository) Save(ctx context.Context, c *domainchat.Chat) error {
	if c == nil || c.ID == "" {
		return domainchat.ErrChatIDRequired
	}
	doc := newChatDocument(c)
	filter := bson.M{"_id": doc.ID, "revision": bson.M{"$lt": doc.Revision}}
	res, err := r.col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainchat.ErrConcurrentUpdate
	}
	return nil
}

type chatDocument struct {
	ID            string   `bson:"_id"`
	Name          string   `bson:"name"`
	IsGroup       bool     `bson:"is_group"`
	Members       []string `bson:"members"`
	Admin         string   `bson:"admin,omitempty"`
	LatestMessage string   `bson:"latest_message,omitempty"`
	Pinned        []string `bson:"pinned"`
	Revision      int64    `bson:"revision"`
	CreatedAt     int64    `bson:"created_at"`
	UpdatedAt     int64    `bson:"updated_at"`
}

func newChatDocument(c *domainchat.Chat) chatDocument {
	doc := chatDocument{
		ID:            string(c.ID),
		Name:          c.Name,
		IsGroup:       c.IsGroup,
		Members:       make([]string, 0, len(c.Members)),
		Admin:         string(c.Admin),
		LatestMessage: string(c.LatestMessageID),
		Pinned:        make([]string, 0, len(c.Pinned)),
		Revision:      c.Revision,
		CreatedAt:     c.CreatedAt.UnixMilli(),
		UpdatedAt:     c.UpdatedAt.UnixMilli(),
	}
	for _, m := range c.Members {
		doc.Members = append(doc.Members, string(m))
	}
	for _, p := range c.Pinned {
		doc.Pinned = append(doc.Pinned, string(p))
	}
	return doc
}

func (d chatDocument) toAggregate() *domainchat.Chat {
	c := &domainchat.Chat{
		ID:              domainchat.ID(d.ID),
		Name:            d.Name,
		IsGroup:         d.IsGroup,
		Members:         make([]domainuser.ID, 0, len(d.Members)),
		Admin:           domainuser.ID(d.Admin),
		LatestMessageID: domainchat.MessageID(d.LatestMessage),
		Pinned:          make([]domainchat.MessageID, 0, len(d.Pinned)),
		Revision:        d.Revision,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
	}
	for _, m := range d.Members {
		c.Members = append(c.Members, domainuser.ID(m))
	}
	for _, p := range d.Pinned {
		c.Pinned = append(c.Pinned, domainchat.MessageID(p))
	}
	return c
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainchat.Repository = (*ChatRepository)(nil)
