package repository

import (
	"context"
	"errors"
	"fmt"

	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WishRepository interface {
	Create(ctx context.Context, wish *entity.Wish) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Wish, error)
	SetFulfilled(ctx context.Context, id uuid.UUID, fulfilled bool) error
	WithTx(tx *gorm.DB) WishRepository
}

type wishRepository struct {
	db *gorm.DB
}

func NewWishRepository(db *gorm.DB) WishRepository {
	return &wishRepository{db: db}
}

func (r *wishRepository) WithTx(tx *gorm.DB) WishRepository {
	return &wishRepository{db: tx}
}

func (r *wishRepository) Create(ctx context.Context, wish *entity.Wish) error {
	return r.db.WithContext(ctx).Create(wish).Error
}

func (r *wishRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Wish, error) {
	var wish entity.Wish
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ?", id).
		First(&wish).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wish %s: %w", id, apperror.ErrNotFound)
		}
		return nil, err
	}
	return &wish, nil
}

func (r *wishRepository) SetFulfilled(ctx context.Context, id uuid.UUID, fulfilled bool) error {
	return r.db.WithContext(ctx).
		Model(&entity.Wish{}).
		Where("id = ?", id).
		Update("is_fulfilled", fulfilled).Error
}
