package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type Options struct {
	Hosts             []string
	Keyspace          string
	Username          string
	Password          string
	Timeout           time.Duration
	ReplicationFactor int
}

// NewSession ensures the message schema exists and returns a session bound to the keyspace.
func NewSession(opts Options, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(opts.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", opts.Keyspace)
	}
	if opts.ReplicationFactor < 1 {
		opts.ReplicationFactor = 1
	}

	base, err := cluster(opts, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer base.Close()
	if err := ensureKeyspace(context.Background(), base, opts); err != nil {
		return nil, err
	}

	session, err := cluster(opts, opts.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", opts.Keyspace, err)
	}
	if err := ensureTables(context.Background(), session, opts.Keyspace); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", opts.Hosts, "keyspace", opts.Keyspace)
	}
	return session, nil
}

func cluster(opts Options, keyspace string) *gocql.ClusterConfig {
	c := gocql.NewCluster(opts.Hosts...)
	c.Keyspace = keyspace
	c.Consistency = gocql.Quorum
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
		c.ConnectTimeout = opts.Timeout
	}
	if opts.Username != "" {
		c.Authenticator = gocql.PasswordAuthenticator{Username: opts.Username, Password: opts.Password}
	}
	return c
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, opts Options) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		opts.Keyspace, opts.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, keyspace string) error {
	byChat := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages_by_chat (
	chat_id text,
	created_at timestamp,
	message_id text,
	sender_id text,
	content text,
	updated_at timestamp,
	PRIMARY KEY (chat_id, created_at, message_id)
) WITH CLUSTERING ORDER BY (created_at DESC, message_id DESC);`, keyspace)
	if err := session.Query(byChat).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create messages_by_chat table: %w", err)
	}

	byID := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages_by_id (
	message_id text PRIMARY KEY,
	chat_id text,
	sender_id text,
	content text,
	created_at timestamp,
	updated_at timestamp
);`, keyspace)
	if err := session.Query(byID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create messages_by_id table: %w", err)
	}
	return nil
}
