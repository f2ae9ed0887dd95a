package repository

import (
	"context"
	"errors"
	"fmt"

	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationRepository interface {
	// GetOrCreateForUpdate returns the single reservation row of wishID,
	// creating it if needed, locked until the surrounding transaction ends.
	GetOrCreateForUpdate(ctx context.Context, wishID uuid.UUID) (*entity.Reservation, error)
	// CloseIfOpen sets the selected user unless one is already set and reports
	// whether this call closed the reservation.
	CloseIfOpen(ctx context.Context, id, userID uuid.UUID) (bool, error)
	// AddCandidate reports false when the pair already exists.
	AddCandidate(ctx context.Context, candidate *entity.Candidate) (bool, error)
	FindCandidate(ctx context.Context, reservationID, userID uuid.UUID) (*entity.Candidate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error)
	FindByWishID(ctx context.Context, wishID uuid.UUID) (*entity.Reservation, error)
	// Reopen reactivates a cancelled reservation and drops its candidates.
	Reopen(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ReservationRepository
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) WithTx(tx *gorm.DB) ReservationRepository {
	return &reservationRepository{db: tx}
}

func (r *reservationRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *reservationRepository) GetOrCreateForUpdate(ctx context.Context, wishID uuid.UUID) (*entity.Reservation, error) {
	fresh := &entity.Reservation{WishID: wishID, IsActive: true}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "wish_id"}}, DoNothing: true}).
		Create(fresh).Error; err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	var reservation entity.Reservation
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wish_id = ?", wishID).
		First(&reservation).Error; err != nil {
		return nil, fmt.Errorf("lock reservation: %w", err)
	}
	return &reservation, nil
}

func (r *reservationRepository) CloseIfOpen(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Reservation{}).
		Where("id = ? AND selected_user_id IS NULL", id).
		Update("selected_user_id", userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *reservationRepository) AddCandidate(ctx context.Context, candidate *entity.Candidate) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reservation_id"}, {Name: "candidate_user_id"}},
			DoNothing: true,
		}).
		Create(candidate)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *reservationRepository) FindCandidate(ctx context.Context, reservationID, userID uuid.UUID) (*entity.Candidate, error) {
	var candidate entity.Candidate
	if err := r.db.WithContext(ctx).
		Preload("CandidateUser").
		Where("reservation_id = ? AND candidate_user_id = ?", reservationID, userID).
		First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrCandidateNotFound
		}
		return nil, err
	}
	return &candidate, nil
}

func (r *reservationRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Wish").
		Preload("SelectedUser").
		Preload("Candidates", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Candidates.CandidateUser")
}

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error) {
	var reservation entity.Reservation
	if err := r.preloaded(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation %s: %w", id, apperror.ErrNotFound)
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) FindByWishID(ctx context.Context, wishID uuid.UUID) (*entity.Reservation, error) {
	var reservation entity.Reservation
	if err := r.preloaded(ctx).Where("wish_id = ?", wishID).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation for wish %s: %w", wishID, apperror.ErrNotFound)
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("reservation_id = ?", id).
		Delete(&entity.Candidate{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&entity.Reservation{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": true, "selected_user_id": nil}).Error
}

func (r *reservationRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.Reservation{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
