package broadcast

import (
	"context"
	"time"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/pkg/logger"
	"realtime-chat/backend/pkg/metrics"
)

// Notifier runs after a message is stored. A failed publish is logged and
// counted but never reported to the sender: the message is already durable
// and clients catch up on their next load of the recent window.
type Notifier struct {
	publisher Publisher
	transport string
	timeout   time.Duration
	log       *logger.Logger
}

// NewNotifier wraps publisher. A zero timeout means 2 seconds.
func NewNotifier(publisher Publisher, timeout time.Duration, log *logger.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	transport := "custom"
	if named, ok := publisher.(interface{ Transport() string }); ok {
		transport = named.Transport()
	}

	return &Notifier{publisher: publisher, transport: transport, timeout: timeout, log: log}
}

// Notify publishes msg and reports whether the publish succeeded.
// The request context's cancellation is ignored so a client that hangs up
// right after posting still gets its message announced.
func (n *Notifier) Notify(ctx context.Context, msg *models.Message) bool {
	if msg == nil {
		return false
	}

	author := models.Author{ID: msg.UserID}
	if msg.Author != nil {
		author = *msg.Author
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, author, msg); err != nil {
		metrics.BroadcastEvents.WithLabelValues(n.transport, "failed").Inc()
		n.log.Warn("Broadcast failed, message stays stored",
			"transport", n.transport,
			"message_id", msg.ID,
			"error", err.Error(),
		)
		return false
	}

	metrics.BroadcastEvents.WithLabelValues(n.transport, "ok").Inc()
	return true
}
