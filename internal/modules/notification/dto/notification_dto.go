package dto

import (
	"time"

	"bazhay.app/wishlist/internal/entity"
	"github.com/google/uuid"
)

// CreateNotificationInput is the store input. No UserIDs means broadcast.
type CreateNotificationInput struct {
	MessageEN string
	MessageUK string
	Buttons   []entity.Button
	UserIDs   []uuid.UUID
	SendAt    *time.Time
}

// CreateNotificationRequest is the admin authoring body. No UserIDs means
// broadcast; no SendAt means now.
type CreateNotificationRequest struct {
	MessageEN string          `json:"message_en" binding:"required"`
	MessageUK string          `json:"message_uk" binding:"required"`
	Button    []entity.Button `json:"button"`
	UserIDs   []uuid.UUID     `json:"user_ids"`
	SendAt    *time.Time      `json:"send_at"`
}

func (r CreateNotificationRequest) Input() CreateNotificationInput {
	return CreateNotificationInput{
		MessageEN: r.MessageEN,
		MessageUK: r.MessageUK,
		Buttons:   r.Button,
		UserIDs:   r.UserIDs,
		SendAt:    r.SendAt,
	}
}

// InboundFrame is a notification a client authors for itself on the live
// channel. It has the shape of an outgoing Envelope.
type InboundFrame struct {
	Message struct {
		MessageEN string          `json:"message_en"`
		MessageUK string          `json:"message_uk"`
		Button    []entity.Button `json:"button"`
		SendAt    *time.Time      `json:"send_at"`
	} `json:"message"`
}

// Input targets the notification at the session user only.
func (f InboundFrame) Input(userID uuid.UUID) CreateNotificationInput {
	return CreateNotificationInput{
		MessageEN: f.Message.MessageEN,
		MessageUK: f.Message.MessageUK,
		Buttons:   f.Message.Button,
		UserIDs:   []uuid.UUID{userID},
		SendAt:    f.Message.SendAt,
	}
}

type ListNotificationsQuery struct {
	SinceID string `form:"since_id" binding:"omitempty,uuid"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

type NotificationResponse struct {
	ID        uuid.UUID       `json:"id"`
	MessageEN string          `json:"message_en"`
	MessageUK string          `json:"message_uk"`
	Button    []entity.Button `json:"button"`
	Users     []uuid.UUID     `json:"users,omitempty"`
	SendAt    time.Time       `json:"send_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// Envelope is the live channel frame.
type Envelope struct {
	Message NotificationResponse `json:"message"`
}

func ToResponse(n *entity.Notification) NotificationResponse {
	buttons := []entity.Button(n.Button)
	if buttons == nil {
		buttons = []entity.Button{}
	}
	var users []uuid.UUID
	if len(n.Users) > 0 {
		users = n.UserIDs()
	}
	return NotificationResponse{
		ID:        n.ID,
		MessageEN: n.MessageEN,
		MessageUK: n.MessageUK,
		Button:    buttons,
		Users:     users,
		SendAt:    n.SendAt,
		CreatedAt: n.CreatedAt,
	}
}
