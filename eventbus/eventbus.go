package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RetryDelays is the fixed backoff schedule for redeliveries, indexed by
// retry attempt (1-based). Each delay maps to its own Kafka topic.
var RetryDelays = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Topic manages a base topic name plus its derived retry and DLQ topics.
type Topic struct {
	base string
}

func NewTopic(base string) Topic {
	return Topic{base: base}
}

func (t Topic) Base() string {
	return t.base
}

// DLQ returns the dead-letter topic name (e.g. my_topic.dlq).
func (t Topic) DLQ() string {
	return t.base + ".dlq"
}

// GetRetryTopics returns every delay topic name for this base topic.
func (t Topic) GetRetryTopics() []string {
	topics := make([]string, len(RetryDelays))
	for i, delay := range RetryDelays {
		// Topic name form: base.retry.10s
		topics[i] = fmt.Sprintf("%s.retry.%s", t.base, delay.String())
	}
	return topics
}

// GetRetryTopic returns the delay topic for the given retry attempt
// (1-based), or ErrMaxRetryExceeded past the end of the schedule.
func (t Topic) GetRetryTopic(retryCount int) (string, error) {
	if retryCount <= 0 || retryCount > len(RetryDelays) {
		return "", ErrMaxRetryExceeded
	}
	delay := RetryDelays[retryCount-1]
	return fmt.Sprintf("%s.retry.%s", t.base, delay.String()), nil
}

// Event is the message payload carried on every topic.
type Event struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Retry     int             `json:"retry"` // redelivery count so far (0 on first delivery)
	MaxRetry  int             `json:"max_retry"`
	LastError string          `json:"last_error,omitempty"`
}

// EventHandler processes one delivered event. A non-nil error schedules
// a redelivery via the delay topics, or the DLQ once MaxRetry is spent.
type EventHandler func(ctx context.Context, event Event) error

// EventBus abstracts publish/subscribe over the broker. Delivery is
// at-least-once; pipeline correctness rests on the optimistic state
// check, not on the bus deduplicating.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	// Subscribe consumes the base topic and runs the handler.
	Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error
	// StartRetryReinjector consumes all delay topics and republishes due
	// events onto the base topic.
	StartRetryReinjector(ctx context.Context, groupID string, topic Topic) error
	Close()
}

// ErrMaxRetryExceeded signals that the retry schedule has no further slot.
var ErrMaxRetryExceeded = errors.New("max retry count exceeded")

// ErrDeferred asks Subscribe to redeliver the event after the longest
// delay without spending its retry budget. For backpressure such as a
// spent daily quota, where the redelivery count says nothing about the
// event's health.
var ErrDeferred = errors.New("event deferred")

// ErrRetryScheduleFailed signals that neither a retry topic nor the DLQ
// could accept the event.
var ErrRetryScheduleFailed = errors.New("retry or DLQ publish failed")
