// Package notify fans domain events out to subscribers.
// The outbox relay hands it committed messages; delivery here is
// at-least-once and consumers are expected to deduplicate by event ID.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stockpilot/internal/infrastructure/storage/postgres"
)

// RedisConfig holds connection settings for the event broker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// ChannelPrefix namespaces published channels, e.g. "stockpilot.events".
	ChannelPrefix string
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// Envelope is the wire format published to subscribers.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Compile-time check that RedisNotifier implements postgres.OutboxHandler.
var _ postgres.OutboxHandler = (*RedisNotifier)(nil)

// RedisNotifier publishes outbox messages to Redis pub/sub channels.
// Each aggregate type gets its own channel, so a shipping consumer can
// subscribe to "stockpilot.events.shipment" without filtering order noise.
type RedisNotifier struct {
	client        *redis.Client
	channelPrefix string
}

// NewRedisNotifier creates a notifier publishing under the given prefix.
func NewRedisNotifier(client *redis.Client, channelPrefix string) *RedisNotifier {
	if channelPrefix == "" {
		channelPrefix = "stockpilot.events"
	}
	return &RedisNotifier{
		client:        client,
		channelPrefix: channelPrefix,
	}
}

// Handle implements postgres.OutboxHandler.
func (n *RedisNotifier) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	envelope := Envelope{
		ID:            msg.ID.String(),
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID.String(),
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		OccurredAt:    msg.CreatedAt,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	channel := n.channelPrefix + "." + msg.AggregateType
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	return nil
}
