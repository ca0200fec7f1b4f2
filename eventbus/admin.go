package eventbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"ai-news-pipeline/logger"
)

// ParseRetryFromTopicName extracts the delay from a retry topic name of
// the form base.retry.10s.
func ParseRetryFromTopicName(topicName string) (time.Duration, bool) {
	idx := strings.LastIndex(topicName, ".retry.")
	if idx < 0 {
		return 0, false
	}
	dur, err := time.ParseDuration(topicName[idx+len(".retry."):])
	if err != nil {
		return 0, false
	}
	return dur, true
}

// EnsureTopics creates every base, retry and DLQ topic idempotently.
// Safe to call from each binary at startup.
func EnsureTopics(ctx context.Context, brokers string, topics []Topic, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer admin.Close()

	if partitions <= 0 {
		partitions = 3
	}

	var specs []kafka.TopicSpecification
	for _, t := range topics {
		names := append([]string{t.Base(), t.DLQ()}, t.GetRetryTopics()...)
		for _, name := range names {
			specs = append(specs, kafka.TopicSpecification{
				Topic:             name,
				NumPartitions:     partitions,
				ReplicationFactor: 1,
			})
		}
	}

	results, err := admin.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrNoError:
			logger.Log.Infof("topic created: %s", res.Topic)
		case kafka.ErrTopicAlreadyExists:
			logger.Log.Debugf("topic already exists: %s", res.Topic)
		default:
			return fmt.Errorf("failed to create topic %s: %w", res.Topic, res.Error)
		}
	}
	return nil
}
