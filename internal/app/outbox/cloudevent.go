package outbox

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	CloudEventsSpecVersion = "1.0"
	CloudEventsContentType = "application/cloudevents+json"
	DefaultSource          = "app://devrim"
)

var ErrMalformedEnvelope = errors.New("outbox: malformed cloudevent envelope")

// CloudEvent is the structured-mode envelope published to brokers.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// Name strips the version suffix from Type.
func (e CloudEvent) Name() string {
	return strings.TrimSuffix(e.Type, ".v1")
}

// EncodeCloudEvent wraps rec into a CloudEvent. The record id becomes the event id
// so consumers can de-duplicate redeliveries.
func EncodeCloudEvent(rec EventRecord, source string) ([]byte, map[string]string, error) {
	if !json.Valid(rec.Payload) {
		return nil, nil, ErrMalformedEnvelope
	}
	if source == "" {
		source = DefaultSource
	}
	evt := CloudEvent{
		SpecVersion:     CloudEventsSpecVersion,
		ID:              rec.ID,
		Type:            rec.Name + ".v1",
		Source:          source,
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt.UTC(),
		DataContentType: "application/json",
		TraceParent:     rec.Headers["traceparent"],
		Data:            json.RawMessage(rec.Payload),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{"content-type": CloudEventsContentType}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func DecodeCloudEvent(payload []byte) (CloudEvent, error) {
	var evt CloudEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return CloudEvent{}, errors.Join(ErrMalformedEnvelope, err)
	}
	if evt.ID == "" || evt.Type == "" || len(evt.Data) == 0 {
		return CloudEvent{}, ErrMalformedEnvelope
	}
	return evt, nil
}

// TopicFor maps an event name to its topic: "chat.updated" -> "{prefix}chat.events.v1".
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}
