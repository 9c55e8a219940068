package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"realtime-chat/backend/internal/models"
	apperrors "realtime-chat/backend/pkg/errors"

	"gorm.io/gorm"
)

// MessageRepository is the message store. It is the only writer of the
// messages table and the sole source of truth for chat history.
type MessageRepository interface {
	Append(ctx context.Context, userID uint, body string) (*models.Message, error)
	Recent(ctx context.Context, limit int) ([]models.Message, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Append inserts a message and returns the stored row with its id and
// timestamp. Id assignment is left to the database so concurrent appends can
// never share an id.
func (r *GormMessageRepository) Append(ctx context.Context, userID uint, body string) (*models.Message, error) {
	body, err := models.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	message := &models.Message{UserID: userID, Body: body}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errUserMissing(userID)
		}
		return tx.Create(message).Error
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, err
		}
		// The user may vanish between the check and the insert; the FK catches that.
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, errUserMissing(userID).Wrap(err)
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	return message, nil
}

// Recent returns up to limit of the newest messages in ascending id order.
func (r *GormMessageRepository) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = models.DefaultRecentLimit
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func errUserMissing(userID uint) *apperrors.AppError {
	return apperrors.NewNotFoundError(apperrors.CodeNotFound, fmt.Sprintf("user %d does not exist", userID))
}
