package models

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "realtime-chat/backend/pkg/errors"
)

const (
	// MaxMessageLength is the longest body accepted, counted in characters after trimming
	MaxMessageLength = 1000
	// DefaultRecentLimit is the size of the recent window shown on the chat page
	DefaultRecentLimit = 50
)

// Message is a single chat line. Rows are append-only: ID and CreatedAt are
// assigned by the database on insert and nothing ever updates or deletes them.
type Message struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`

	// User only exists so AutoMigrate creates the foreign key; it is never preloaded.
	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`

	// Author is filled in by the chat service's batched name lookup.
	Author *Author `gorm:"-" json:"user,omitempty"`
}

// TableName pins the table name
func (Message) TableName() string {
	return "messages"
}

// Author is the denormalized display info attached to a message
type Author struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// SendMessageRequest is the body of a chat post
type SendMessageRequest struct {
	Message string `json:"message" form:"message"`
}

// SendMessageResponse acknowledges a stored message to the client that sent it
type SendMessageResponse struct {
	Status  string   `json:"status"`
	Message *Message `json:"message"`
}

// NormalizeBody trims a raw chat body and checks it against the length rules.
// Length is counted in characters, not bytes.
func NormalizeBody(raw string) (string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return "", apperrors.NewValidationError("message", "message required")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", apperrors.NewValidationError("message", "message too long")
	}
	return body, nil
}
