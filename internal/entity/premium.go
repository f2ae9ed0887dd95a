package entity

import (
	"time"

	"github.com/google/uuid"
)

const PremiumPeriod = 30 * 24 * time.Hour

type Premium struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	User          *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	DateOfPayment time.Time `gorm:"not null" json:"date_of_payment"`
	IsUsedTrial   bool      `gorm:"default:true;not null" json:"is_used_trial"`
}

// IsActive holds while the last payment is not older than one period.
func (p *Premium) IsActive(now time.Time) bool {
	return !now.After(p.DateOfPayment.Add(PremiumPeriod))
}
