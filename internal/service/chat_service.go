package service

import (
	"context"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/internal/repository"
	apperrors "realtime-chat/backend/pkg/errors"
	"realtime-chat/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "realtime-chat/backend/internal/service"

// DisplayNameDirectory resolves author names for a set of user ids in one lookup
type DisplayNameDirectory interface {
	DisplayNames(ctx context.Context, ids []uint) (map[uint]string, error)
}

// ChatService holds the chat room's business rules: validation, persistence
// and author enrichment. Broadcasting is left to the caller so a stored
// message is never rolled back or duplicated because a publish failed.
type ChatService struct {
	messages repository.MessageRepository
	users    DisplayNameDirectory
	log      *logger.Logger
	tracer   trace.Tracer
	stored   metric.Int64Counter
}

// NewChatService creates a new chat service
func NewChatService(messages repository.MessageRepository, users DisplayNameDirectory, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.GetGlobal()
	}

	// The global meter is a no-op until observability is set up; errors only come from bad instrument names.
	stored, _ := otel.Meter(instrumentationName).Int64Counter(
		"chat.messages.stored",
		metric.WithDescription("Messages durably stored"),
	)

	return &ChatService{
		messages: messages,
		users:    users,
		log:      log,
		tracer:   otel.Tracer(instrumentationName),
		stored:   stored,
	}
}

// GetRecentMessages returns the newest messages, oldest first, each with its author attached.
func (s *ChatService) GetRecentMessages(ctx context.Context, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = models.DefaultRecentLimit
	}

	ctx, span := s.tracer.Start(ctx, "ChatService.GetRecentMessages",
		trace.WithAttributes(attribute.Int("chat.limit", limit)))
	defer span.End()

	messages, err := s.messages.Recent(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recent messages")
		return nil, err
	}

	if err := s.attachAuthors(ctx, messages); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attach authors")
		return nil, err
	}

	span.SetAttributes(attribute.Int("chat.returned", len(messages)))
	return messages, nil
}

// StoreMessage validates and persists a message on behalf of actor. A nil
// actor means the request was not authenticated; nothing is written then.
func (s *ChatService) StoreMessage(ctx context.Context, actor *models.Identity, rawText string) (*models.Message, error) {
	if actor == nil || actor.ID == 0 {
		return nil, apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required")
	}

	ctx, span := s.tracer.Start(ctx, "ChatService.StoreMessage",
		trace.WithAttributes(attribute.Int64("chat.user_id", int64(actor.ID))))
	defer span.End()

	body, err := models.NormalizeBody(rawText)
	if err != nil {
		span.SetStatus(codes.Error, "validation")
		return nil, err
	}

	message, err := s.messages.Append(ctx, actor.ID, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append")
		return nil, err
	}
	s.stored.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("chat.message_id", int64(message.ID)))

	// The row is committed at this point. Failing the request now would invite
	// a client retry and a duplicate, so a lookup error falls back to the actor's name.
	names, err := s.users.DisplayNames(ctx, []uint{message.UserID})
	name, ok := names[message.UserID]
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("Author lookup failed after store, using session name",
				"message_id", message.ID,
				"error", err.Error(),
			)
		}
		name = actor.Name
	}
	message.Author = &models.Author{ID: message.UserID, Name: name}

	return message, nil
}

func (s *ChatService) attachAuthors(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(messages))
	seen := make(map[uint]struct{}, len(messages))
	for _, m := range messages {
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}

	names, err := s.users.DisplayNames(ctx, ids)
	if err != nil {
		return err
	}

	for i := range messages {
		messages[i].Author = &models.Author{
			ID:   messages[i].UserID,
			Name: names[messages[i].UserID],
		}
	}
	return nil
}
