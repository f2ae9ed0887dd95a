package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  *string   `gorm:"size:150;uniqueIndex" json:"username,omitempty"`
	FirstName *string   `gorm:"size:128" json:"first_name,omitempty"`
	LastName  *string   `gorm:"size:128" json:"last_name,omitempty"`
	// IsAlreadyRegistered flips once the user received the welcome notification.
	IsAlreadyRegistered bool      `gorm:"default:false;not null" json:"is_already_registered"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DisplayName is the name used in notification texts.
func (u *User) DisplayName() string {
	var parts []string
	if u.FirstName != nil && *u.FirstName != "" {
		parts = append(parts, *u.FirstName)
	}
	if u.LastName != nil && *u.LastName != "" {
		parts = append(parts, *u.LastName)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.ID.String()[:8]
}
