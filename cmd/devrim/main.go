package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"devrim/internal/app/bootstrap"
	appoutbox "devrim/internal/app/outbox"
	apprealtime "devrim/internal/app/realtime"
	"devrim/internal/app/services/identity"
	domainauth "devrim/internal/domain/auth"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
	"devrim/internal/infra/broker/inproc"
	"devrim/internal/infra/broker/kafka"
	redisstore "devrim/internal/infra/cache/redis"
	"devrim/internal/infra/config"
	mongodb "devrim/internal/infra/db/mongo"
	"devrim/internal/infra/db/scylla"
	ginserver "devrim/internal/infra/http/gin"
	infrainbox "devrim/internal/infra/inbox"
	"devrim/internal/infra/obs"
	infraoutbox "devrim/internal/infra/outbox"
	"devrim/internal/infra/realtime/ws"
	"devrim/internal/infra/security"
	"devrim/internal/infra/storage/memory"
	"devrim/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev", "info")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	fixtures, err := bootstrap.LoadFixtures(cfg.UsersFixtures)
	if err != nil {
		logger.Warn("users fixtures load failed", "error", err)
	}
	if err := bootstrap.Seed(ctx, app.users, app.identity, fixtures); err != nil {
		logger.Warn("users fixtures seed failed", "error", err)
	} else if len(fixtures) > 0 {
		logger.Info("users fixtures imported", "count", len(fixtures))
	}

	var wg sync.WaitGroup
	for name, run := range app.background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background worker stopped", "worker", name, "error", err)
			}
		}()
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "messages", cfg.MessageStore, "kafka", len(cfg.KafkaBrokers) > 0)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

type storage struct {
	bootstrap.Stack
	users    domainuser.Repository
	sessions domainauth.SessionStore
	inbox    apprealtime.Inbox
}

type application struct {
	handlers   ginserver.Handlers
	health     obs.HealthHandlers
	hub        *ws.Hub
	users      domainuser.Repository
	identity   *identity.Service
	background map[string]func(ctx context.Context) error
	closers    []func(ctx context.Context) error
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		health:     obs.HealthHandlers{Checks: map[string]obs.Check{}},
		background: map[string]func(ctx context.Context) error{},
	}
	topic := appoutbox.TopicFor(cfg.KafkaTopicPrefix, domainchat.EventChatUpdated)

	var producer appoutbox.Producer
	var local *inproc.Broker
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
		producer = p
	} else {
		local = inproc.New(logger)
		app.closers = append(app.closers, func(context.Context) error { return local.Close() })
		producer = local
	}

	store, err := buildStorage(cfg, producer, app, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	sessions := store.sessions
	if cfg.SessionStore == config.SessionStoreRedis {
		client := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisSessions := redisstore.NewSessionStore(client)
		app.health.Checks["redis"] = redisSessions.Ping
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		sessions = redisSessions
	}
	app.users = store.users
	app.identity = &identity.Service{
		Users:      store.users,
		Sessions:   sessions,
		Tokens:     security.RandomTokenGenerator{},
		Passwords:  security.BcryptHasher{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	store.Validator = validation.New()
	store.Logger = logger
	store.MaxPinned = cfg.MaxPinned
	buses := bootstrap.NewBuses(store.Stack)

	relay := &apprealtime.Relay{UoWFactory: store.UoWFactory, Inbox: store.inbox, Logger: logger}
	app.hub = ws.NewHub(relay, logger)
	relay.Pusher = app.hub

	if local != nil {
		// gochannel drops messages published before the first subscriber
		if err := local.Subscribe(ctx, topic, relay.HandleCloudEvent); err != nil {
			app.close(logger)
			return nil, err
		}
	} else {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, kafka.PayloadFunc(relay.HandleCloudEvent), logger)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		app.background["relay-consumer"] = func(ctx context.Context) error {
			return consumer.Run(ctx, []string{topic})
		}
	}

	app.handlers = ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Message:        ginserver.MessageHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		User:           ginserver.UserHandler{Queries: buses.Queries, Logger: logger},
		Auth:           ginserver.AuthHandler{Service: app.identity, Logger: logger},
		Realtime:       ginserver.RealtimeHandler{Hub: app.hub, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: app.identity, Logger: logger}.Handle,
		SendLimiter:    ginserver.NewSendRateLimiter(cfg.SendRatePerMin, cfg.SendBurst).Middleware(),
	}
	return app, nil
}

func buildStorage(cfg config.Config, producer appoutbox.Producer, app *application, logger *slog.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		mem := memory.NewStack(producer, cfg.KafkaTopicPrefix, cfg.IdempotencyTTL, cfg.InboxWindow, logger)
		return &storage{
			Stack: bootstrap.Stack{
				UoWFactory:  mem.Factory,
				Outbox:      mem.Outbox,
				Idempotency: mem.Idempotency,
			},
			users:    mem.Users,
			sessions: mem.Sessions,
			inbox:    mem.Inbox,
		}, nil
	}

	client, err := mongodb.New(mongodb.Options{URI: cfg.MongoURI, Database: cfg.MongoDB, MaxPoolSize: cfg.MongoPoolSize})
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client.Close)
	app.health.Checks["mongo"] = client.Ping

	users := mongodb.NewUserRepository(client.DB)
	factory := mongodb.Factory{
		DB:           client.DB,
		ChatsRepo:    mongodb.NewChatRepository(client.DB),
		MessagesRepo: mongodb.NewMessageRepository(client.DB),
		UsersRepo:    users,
	}
	if cfg.MessageStore == config.MessageStoreScylla {
		session, err := scylla.NewSession(scylla.Options{
			Hosts:             cfg.ScyllaHosts,
			Keyspace:          cfg.ScyllaKeyspace,
			Username:          cfg.ScyllaUsername,
			Password:          cfg.ScyllaPassword,
			Timeout:           cfg.ScyllaTimeout,
			ReplicationFactor: cfg.ReplicationFactor,
		}, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error {
			session.Close()
			return nil
		})
		factory.MessagesRepo = scylla.NewMessageRepository(session)
	}

	outboxStore := infraoutbox.NewStore(client.DB)
	worker := &infraoutbox.Worker{
		Store:       outboxStore,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      "devrim",
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	app.background["outbox-worker"] = worker.Run

	return &storage{
		Stack: bootstrap.Stack{
			UoWFactory:  factory,
			Outbox:      outboxStore,
			Idempotency: mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		},
		users:    users,
		sessions: memory.NewSessionStore(),
		inbox:    infrainbox.NewStore(client.DB, cfg.KafkaConsumerGroup, cfg.InboxWindow),
	}, nil
}
