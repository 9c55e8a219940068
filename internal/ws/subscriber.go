package ws

import (
	"context"

	"realtime-chat/backend/internal/broadcast"

	"github.com/redis/go-redis/v9"
)

// SubscribeRedis relays events published on channel by any server instance
// to this hub's clients. It blocks until ctx is cancelled.
func (h *Hub) SubscribeRedis(ctx context.Context, client *redis.Client, channel string) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so a bad connection fails fast
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.log.Info("Subscribed to broadcast channel", "channel", channel)

	h.relay(ctx, pubsub.Channel())
	return nil
}

func (h *Hub) relay(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			payload := []byte(msg.Payload)
			if _, err := broadcast.DecodeEvent(payload); err != nil {
				h.log.Warn("Ignoring malformed broadcast payload", "channel", msg.Channel, "error", err.Error())
				continue
			}

			if err := h.Broadcast(payload); err != nil {
				h.log.Warn("Relay to websocket clients failed", "channel", msg.Channel, "error", err.Error())
			}
		}
	}
}
