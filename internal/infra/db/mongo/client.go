package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

type Options struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

// Client owns the driver connection behind the chat, message, user, outbox
// and idempotency collections.
type Client struct {
	DB *mongo.Database
}

// New connects and pings the primary so a bad URI fails at startup rather
// than on the first chat request. Transactions need a replica set.
func New(opts Options) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetAppName("devrim").
		SetRetryWrites(true).
		SetServerSelectionTimeout(connectTimeout)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	m, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := m.Ping(ctx, readpref.Primary()); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping %s: %w", opts.Database, err)
	}
	return &Client{DB: m.Database(opts.Database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}
