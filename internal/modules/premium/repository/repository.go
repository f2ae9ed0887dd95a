package repository

import (
	"context"
	"errors"

	"bazhay.app/wishlist/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PremiumRepository interface {
	// FindByUserID returns nil without error when the user never paid.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Premium, error)
	Save(ctx context.Context, premium *entity.Premium) error
}

type premiumRepository struct {
	db *gorm.DB
}

func NewPremiumRepository(db *gorm.DB) PremiumRepository {
	return &premiumRepository{db: db}
}

func (r *premiumRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Premium, error) {
	var premium entity.Premium
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&premium).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &premium, nil
}

func (r *premiumRepository) Save(ctx context.Context, premium *entity.Premium) error {
	return r.db.WithContext(ctx).Save(premium).Error
}
