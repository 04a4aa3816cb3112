// Package redpanda provides Kafka-compatible streaming with franz-go
// for the settlement event pipeline.
package redpanda

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Topic names for the settlement pipeline.
const (
	// TopicTransitions carries status-change events per VO.
	TopicTransitions = "vo.transitions"
	// TopicRefunds carries copayment document and refund events.
	TopicRefunds = "settlement.refunds"
	// TopicLetters carries letter render jobs for the letter service.
	TopicLetters = "settlement.letters"
	// TopicAuditTrail is the long-retention audit stream.
	TopicAuditTrail = "audit.trail"
	// TopicDeadLetter receives entries that exhausted their retries.
	TopicDeadLetter = "dead.letter"
)

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// DefaultTopicConfigs returns the settlement pipeline topic set.
func DefaultTopicConfigs() []TopicConfig {
	ptr := func(s string) *string { return &s }

	retention := func(ms string) map[string]*string {
		return map[string]*string{
			"retention.ms":     ptr(ms),
			"cleanup.policy":   ptr("delete"),
			"compression.type": ptr("lz4"),
		}
	}

	return []TopicConfig{
		{Name: TopicTransitions, Partitions: 6, ReplicationFactor: 1, Configs: retention("604800000")},
		{Name: TopicRefunds, Partitions: 3, ReplicationFactor: 1, Configs: retention("2592000000")},
		{Name: TopicLetters, Partitions: 6, ReplicationFactor: 1, Configs: retention("86400000")},
		{Name: TopicAuditTrail, Partitions: 3, ReplicationFactor: 1, Configs: retention("2592000000")},
		{Name: TopicDeadLetter, Partitions: 1, ReplicationFactor: 1, Configs: retention("604800000")},
	}
}

// Admin provides administrative operations for the broker.
type Admin struct {
	client *kadm.Client
	logger *zap.Logger
}

// NewAdmin creates a new admin client
func NewAdmin(brokers []string, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kgoClient, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Admin{client: kadm.NewClient(kgoClient), logger: logger}, nil
}

// CreateTopics creates the specified topics
func (a *Admin) CreateTopics(ctx context.Context, configs []TopicConfig) error {
	for _, cfg := range configs {
		resp, err := a.client.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, cfg.Configs, cfg.Name)
		if err != nil {
			return fmt.Errorf("create topic %s: %w", cfg.Name, err)
		}

		for _, r := range resp {
			if r.Err != nil {
				if r.Err.Error() == "TOPIC_ALREADY_EXISTS" {
					a.logger.Info("topic already exists", zap.String("topic", r.Topic))
					continue
				}
				return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
			}
			a.logger.Info("topic created",
				zap.String("topic", r.Topic),
				zap.Int32("partitions", cfg.Partitions))
		}
	}
	return nil
}

// EnsureTopics ensures all pipeline topics exist.
func (a *Admin) EnsureTopics(ctx context.Context) error {
	return a.CreateTopics(ctx, DefaultTopicConfigs())
}

// ConsumerLag returns the lag for a consumer group, per topic/partition.
func (a *Admin) ConsumerLag(ctx context.Context, groupID string) (map[string]map[int32]int64, error) {
	described, err := a.client.Lag(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get consumer group lag: %w", err)
	}

	result := make(map[string]map[int32]int64)
	described.Each(func(l kadm.DescribedGroupLag) {
		for topic, partitions := range l.Lag {
			if result[topic] == nil {
				result[topic] = make(map[int32]int64)
			}
			for partition, lag := range partitions {
				result[topic][partition] = lag.Lag
			}
		}
	})
	return result, nil
}

// Close closes the admin client
func (a *Admin) Close() {
	a.client.Close()
}

// HealthCheck verifies broker connectivity.
func HealthCheck(ctx context.Context, brokers []string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
