package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "devrim/internal/app/outbox"
)

type fakeClaimStore struct {
	due    []*EventDocument
	sent   []string
	failed map[string]string
}

func (s *fakeClaimStore) Claim(context.Context, string) (*EventDocument, error) {
	if len(s.due) == 0 {
		return nil, nil
	}
	doc := s.due[0]
	s.due = s.due[1:]
	return doc, nil
}

func (s *fakeClaimStore) MarkSent(_ context.Context, id string) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeClaimStore) MarkFailed(_ context.Context, id string, _ time.Time, errMsg string) error {
	if s.failed == nil {
		s.failed = map[string]string{}
	}
	s.failed[id] = errMsg
	return nil
}

type published struct {
	topic, key string
	payload    []byte
}

type fakeProducer struct {
	out    []published
	failOn string
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, _ map[string]string) error {
	if key == p.failOn {
		return errors.New("broker down")
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload})
	return nil
}

func TestWorkerDrain(t *testing.T) {
	store := &fakeClaimStore{due: []*EventDocument{
		{ID: "e1", Name: "chat.updated", Aggregate: "c1", Payload: []byte(`{"chat_id":"c1"}`)},
		{ID: "e2", Name: "chat.message_posted", Aggregate: "c2", Payload: []byte(`{"chat_id":"c2"}`)},
		{ID: "e3", Name: "chat.updated", Aggregate: "c3", Payload: []byte(`{broken`)},
	}}
	producer := &fakeProducer{failOn: "c2"}
	w := &Worker{Store: store, Producer: producer, TopicPrefix: "dev.", ID: "w1"}

	require.NoError(t, w.Drain(context.Background()))

	assert.Equal(t, []string{"e1"}, store.sent)
	assert.Contains(t, store.failed["e2"], "broker down")
	assert.Contains(t, store.failed, "e3")
	require.Len(t, producer.out, 1)
	assert.Equal(t, "dev.chat.events.v1", producer.out[0].topic)

	evt, err := appoutbox.DecodeCloudEvent(producer.out[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "e1", evt.ID)
	assert.Equal(t, "chat.updated.v1", evt.Type)
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := &Worker{}
	assert.ErrorIs(t, w.Run(context.Background()), ErrWorkerNotConfigured)
}

func TestWorkerBackoff(t *testing.T) {
	w := &Worker{Backoff: []time.Duration{time.Second, time.Minute}}
	now := time.Now()
	assert.WithinDuration(t, now.Add(time.Second), w.nextRetry(0), time.Second)
	assert.WithinDuration(t, now.Add(time.Minute), w.nextRetry(5), time.Second)
}
