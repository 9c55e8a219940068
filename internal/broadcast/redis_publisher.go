package broadcast

import (
	"context"
	"fmt"

	"realtime-chat/backend/internal/models"
	apperrors "realtime-chat/backend/pkg/errors"
	"realtime-chat/backend/pkg/resilience"

	"github.com/redis/go-redis/v9"
)

// PubSubPublisher is the part of *redis.Client the publisher needs
type PubSubPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes events on a Redis pub/sub channel. Every server
// instance subscribes to the same channel and relays to its own websockets.
type RedisPublisher struct {
	client  PubSubPublisher
	channel string
	breaker *resilience.CircuitBreaker
}

// NewRedisPublisher creates a publisher for channel. breaker may be nil.
func NewRedisPublisher(client PubSubPublisher, channel string, breaker *resilience.CircuitBreaker) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, breaker: breaker}
}

// Publish implements Publisher
func (p *RedisPublisher) Publish(ctx context.Context, author models.Author, msg *models.Message) error {
	payload, err := MessageSent(author, msg).Encode()
	if err != nil {
		return apperrors.NewTransportError("encode broadcast event", err)
	}

	send := func() error {
		return p.client.Publish(ctx, p.channel, payload).Err()
	}

	if p.breaker != nil {
		err = p.breaker.Execute(send)
	} else {
		err = send()
	}
	if err != nil {
		return apperrors.NewTransportError(fmt.Sprintf("publish to %q", p.channel), err)
	}
	return nil
}

// Transport names the publisher in logs and metrics
func (p *RedisPublisher) Transport() string {
	return "redis"
}
