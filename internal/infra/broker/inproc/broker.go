// Package inproc carries outbox events through an in-memory watermill channel
// when no Kafka cluster is configured.
package inproc

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const metaKey = "partition_key"

type Handler func(ctx context.Context, payload []byte) error

type Broker struct {
	channel *gochannel.GoChannel
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		channel: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NewStdLogger(false, false)),
		logger:  logger,
	}
}

// Publish satisfies the outbox producer contract.
func (b *Broker) Publish(_ context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	for k, v := range headers {
		msg.Metadata.Set(k, v)
	}
	msg.Metadata.Set(metaKey, key)
	return b.channel.Publish(topic, msg)
}

// Subscribe starts delivering topic to handler in the background until ctx ends.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.channel.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			if err := handler(msg.Context(), msg.Payload); err != nil {
				b.logger.Warn("inproc message handling failed", "topic", topic, "msg_id", msg.UUID, "error", err)
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Broker) Close() error {
	return b.channel.Close()
}
