package eventbus

import "os"

// GetBrokers reads the Kafka bootstrap servers from the environment,
// defaulting to a local single-node broker.
func GetBrokers() string {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		return v
	}
	return "localhost:9092"
}

// GetGroupID returns the consumer group ID for a worker role, optionally
// overridden per deployment via KAFKA_GROUP_PREFIX.
func GetGroupID(role string) string {
	prefix := os.Getenv("KAFKA_GROUP_PREFIX")
	if prefix == "" {
		prefix = "news-pipeline"
	}
	return prefix + "." + role
}
