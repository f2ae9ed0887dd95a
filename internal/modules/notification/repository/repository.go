package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error)
	// ListFor returns notifications visible to userID whose send time has
	// passed, ordered by (send_at, id). sinceID resumes after that row.
	ListFor(ctx context.Context, userID uuid.UUID, sinceID *uuid.UUID, limit int, now time.Time) ([]entity.Notification, error)
	// MarkDelivered reports whether this call set delivered_at.
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]entity.Notification, error)
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(tx *gorm.DB) NotificationRepository
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) WithTx(tx *gorm.DB) NotificationRepository {
	return &notificationRepository{db: tx}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	// Targets are existing users; only the join rows are written.
	return r.db.WithContext(ctx).Omit("Users.*").Create(notification).Error
}

func (r *notificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	var notification entity.Notification
	if err := r.db.WithContext(ctx).
		Preload("Users", func(db *gorm.DB) *gorm.DB {
			return db.Select("id")
		}).
		Where("id = ?", id).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification %s: %w", id, apperror.ErrNotFound)
		}
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) ListFor(ctx context.Context, userID uuid.UUID, sinceID *uuid.UUID, limit int, now time.Time) ([]entity.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := r.db.WithContext(ctx).
		Where("send_at <= ?", now).
		Scopes(visibleTo(userID))

	if sinceID != nil {
		var cursor entity.Notification
		if err := r.db.WithContext(ctx).
			Select("id", "send_at").
			Scopes(visibleTo(userID)).
			Where("id = ?", *sinceID).
			First(&cursor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("since_id %s: %w", *sinceID, apperror.ErrNotFound)
			}
			return nil, err
		}
		query = query.Where("(send_at > ? OR (send_at = ? AND id > ?))", cursor.SendAt, cursor.SendAt, cursor.ID)
	}

	var notifications []entity.Notification
	if err := query.
		Order("send_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Update("delivered_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *notificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]entity.Notification, error) {
	var notifications []entity.Notification
	err := r.db.WithContext(ctx).
		Where("delivered_at IS NULL AND send_at <= ?", now).
		Order("send_at ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Select("Users").Delete(&entity.Notification{ID: id})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", id, apperror.ErrNotFound)
	}
	return nil
}

// visibleTo keeps broadcasts and notifications that target userID.
func visibleTo(userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(`(NOT EXISTS (SELECT 1 FROM notification_users nu WHERE nu.notification_id = notifications.id)
			OR EXISTS (SELECT 1 FROM notification_users nu WHERE nu.notification_id = notifications.id AND nu.user_id = ?))`, userID)
	}
}
