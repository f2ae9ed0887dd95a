// Package pubsub is the channel layer shared by the notification dispatcher
// and the live connection gateway. Groups are append-only fan-out targets:
// every subscriber of a group receives its own copy of each payload.
package pubsub

import (
	"context"

	"github.com/google/uuid"
)

// BroadcastGroup reaches every connected session.
const BroadcastGroup = "notifications"

// UserGroup is the personal group of a single user.
func UserGroup(userID uuid.UUID) string {
	return "user:" + userID.String()
}

type Broker interface {
	Publish(ctx context.Context, group string, payload []byte) error
	Subscribe(ctx context.Context, groups ...string) (Subscription, error)
}

type Subscription interface {
	// C is closed once the subscription is closed.
	C() <-chan []byte
	Close() error
}

const subscriptionBuffer = 64
