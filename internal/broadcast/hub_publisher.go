package broadcast

import (
	"context"

	"realtime-chat/backend/internal/models"
	apperrors "realtime-chat/backend/pkg/errors"
)

// Fanout delivers an encoded event to local subscribers
type Fanout interface {
	Broadcast(payload []byte) error
}

// HubPublisher delivers events straight to this process's websocket hub.
// It is used when Redis is disabled and only one server instance runs.
type HubPublisher struct {
	fanout Fanout
}

// NewHubPublisher creates a publisher backed by fanout
func NewHubPublisher(fanout Fanout) *HubPublisher {
	return &HubPublisher{fanout: fanout}
}

// Publish implements Publisher
func (p *HubPublisher) Publish(ctx context.Context, author models.Author, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewTransportError("publish cancelled", err)
	}

	payload, err := MessageSent(author, msg).Encode()
	if err != nil {
		return apperrors.NewTransportError("encode broadcast event", err)
	}

	if err := p.fanout.Broadcast(payload); err != nil {
		return apperrors.NewTransportError("hub broadcast", err)
	}
	return nil
}

// Transport names the publisher in logs and metrics
func (p *HubPublisher) Transport() string {
	return "hub"
}
