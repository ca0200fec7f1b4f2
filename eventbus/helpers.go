package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewJSONEvent wraps a typed payload into an Event with a fresh ID.
func NewJSONEvent(payload any, maxRetry int) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if maxRetry <= 0 || maxRetry > len(RetryDelays) {
		maxRetry = len(RetryDelays)
	}
	return Event{
		ID:       uuid.New().String(),
		Payload:  data,
		MaxRetry: maxRetry,
	}, nil
}

// DecodeJSON unmarshals the event payload into T.
func DecodeJSON[T any](event Event) (T, error) {
	var out T
	if err := json.Unmarshal(event.Payload, &out); err != nil {
		return out, fmt.Errorf("failed to decode event %s payload: %w", event.ID, err)
	}
	return out, nil
}

// PublishJSON marshals the payload and publishes it on the topic's base.
func PublishJSON(ctx context.Context, bus EventBus, topic Topic, payload any, maxRetry int) error {
	evt, err := NewJSONEvent(payload, maxRetry)
	if err != nil {
		return err
	}
	return bus.Publish(ctx, topic.Base(), evt)
}
