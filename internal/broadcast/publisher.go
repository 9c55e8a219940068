// Package broadcast announces stored chat messages to connected clients.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"realtime-chat/backend/internal/models"
)

// EventMessageSent is the only event the chat room emits
const EventMessageSent = "MessageSent"

// Publisher announces a stored message. Implementations may fail; callers
// decide whether that matters (see Notifier).
type Publisher interface {
	Publish(ctx context.Context, author models.Author, msg *models.Message) error
}

// Event is the wire shape pushed to every subscriber
type Event struct {
	Event   string        `json:"event"`
	User    models.Author `json:"user"`
	Message EventMessage  `json:"message"`
}

// EventMessage is the message part of an Event
type EventMessage struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageSent builds the event for a stored message
func MessageSent(author models.Author, msg *models.Message) Event {
	return Event{
		Event: EventMessageSent,
		User:  author,
		Message: EventMessage{
			ID:        msg.ID,
			UserID:    msg.UserID,
			Body:      msg.Body,
			CreatedAt: msg.CreatedAt,
		},
	}
}

// Encode marshals the event for the wire
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses an event received from the wire
func DecodeEvent(payload []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(payload, &e)
	return e, err
}
