package repository

import (
	"context"

	"bazhay.app/wishlist/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *entity.Subscription) error
	Exists(ctx context.Context, userID, subscribedToID uuid.UUID) (bool, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *entity.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepository) Exists(ctx context.Context, userID, subscribedToID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Subscription{}).
		Where("user_id = ? AND subscribed_to_id = ?", userID, subscribedToID).
		Count(&count).Error
	return count > 0, err
}
