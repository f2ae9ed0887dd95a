package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation is the single reservation slot of a wish. A non-nil
// SelectedUserID closes it for good.
type Reservation struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	WishID         uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex" json:"wish_id"`
	Wish           *Wish       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SelectedUserID *uuid.UUID  `gorm:"type:uuid;index" json:"selected_user_id"`
	SelectedUser   *User       `gorm:"foreignKey:SelectedUserID;constraint:OnDelete:SET NULL" json:"selected_user,omitempty"`
	IsActive       bool        `gorm:"default:true;not null" json:"is_active"`
	Candidates     []Candidate `gorm:"constraint:OnDelete:CASCADE" json:"candidates,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

func (r *Reservation) IsClosed() bool {
	return r.SelectedUserID != nil
}

type Candidate struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReservationID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_candidates_reservation_user,priority:1" json:"reservation_id"`
	CandidateUserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_candidates_reservation_user,priority:2" json:"candidate_user_id"`
	CandidateUser   *User     `gorm:"foreignKey:CandidateUserID;constraint:OnDelete:CASCADE" json:"candidate_user,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Candidate) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}
