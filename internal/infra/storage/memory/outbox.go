package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	appoutbox "devrim/internal/app/outbox"
)

// Outbox keeps records in memory and publishes them on Flush. Records whose
// publish failed stay queued for the next flush.
type Outbox struct {
	Producer    appoutbox.Producer
	TopicPrefix string
	Source      string
	Logger      *slog.Logger

	mu      sync.Mutex
	records []appoutbox.EventRecord
}

func NewOutbox(producer appoutbox.Producer, topicPrefix string, logger *slog.Logger) *Outbox {
	return &Outbox{Producer: producer, TopicPrefix: topicPrefix, Logger: logger}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Producer == nil {
		o.records = nil
		return nil
	}
	var errs []error
	pending := o.records[:0]
	for _, rec := range o.records {
		payload, headers, err := appoutbox.EncodeCloudEvent(rec, o.Source)
		if err != nil {
			// unencodable records are dropped, retrying cannot fix them
			errs = append(errs, err)
			continue
		}
		topic := appoutbox.TopicFor(o.TopicPrefix, rec.Name)
		if err := o.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers); err != nil {
			errs = append(errs, err)
			pending = append(pending, rec)
			continue
		}
	}
	o.records = pending
	if len(errs) > 0 && o.Logger != nil {
		o.Logger.Warn("outbox flush incomplete", "pending", len(pending), "error", errors.Join(errs...))
	}
	return errors.Join(errs...)
}

// Pending reports how many records await publishing.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.records)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
