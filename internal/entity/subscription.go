package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Subscription struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_pair,priority:1" json:"user_id"`
	SubscribedToID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_pair,priority:2" json:"subscribed_to_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID, err = uuid.NewV7()
	}
	return
}
