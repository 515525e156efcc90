package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// EventPublisher emits domain events after commits. Publication is
// best-effort: a failed publish never rolls back a committed roster.
type EventPublisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// RedisEventPublisher publishes events onto a Redis pub/sub channel.
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisEventPublisher constructs the publisher.
func NewRedisEventPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisEventPublisher{client: client, channel: channel, logger: logger}
}

// Publish serializes and sends the event.
func (p *RedisEventPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal domain event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish domain event: %w", err)
	}
	return nil
}

// NopPublisher drops events. Used when eventing is disabled.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, models.DomainEvent) error { return nil }
