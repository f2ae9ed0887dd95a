package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LocalizedText struct {
	TextEN string `json:"text_en"`
	TextUK string `json:"text_uk"`
}

// ButtonRequest is opaque to the backend: it is stored and forwarded, the
// client performs the call.
type ButtonRequest struct {
	URL  string            `json:"url"`
	Body map[string]string `json:"body,omitempty"`
}

type Button struct {
	TextEN            string         `json:"text_en"`
	TextUK            string         `json:"text_uk"`
	Request           ButtonRequest  `json:"request"`
	ResponseOkText    *LocalizedText `json:"response_ok_text,omitempty"`
	ResponseNotOkText *LocalizedText `json:"response_not_ok_text,omitempty"`
}

type Notification struct {
	ID        uuid.UUID                  `gorm:"type:uuid;primaryKey" json:"id"`
	MessageEN string                     `gorm:"type:text;not null" json:"message_en"`
	MessageUK string                     `gorm:"type:text;not null" json:"message_uk"`
	Button    datatypes.JSONSlice[Button] `json:"button"`
	// Users are the targets; none means broadcast.
	Users       []User     `gorm:"many2many:notification_users;constraint:OnDelete:CASCADE" json:"-"`
	SendAt      time.Time  `gorm:"not null;index" json:"send_at"`
	DeliveredAt *time.Time `gorm:"index" json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID, err = uuid.NewV7()
	}
	return
}

func (n *Notification) IsBroadcast() bool {
	return len(n.Users) == 0
}

func (n *Notification) UserIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(n.Users))
	for _, u := range n.Users {
		ids = append(ids, u.ID)
	}
	return ids
}
