package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FireFunc is invoked once a scheduled notification becomes due.
type FireFunc func(ctx context.Context, id uuid.UUID) error

// Scheduler holds deferred delivery jobs until they are due. Jobs are
// advisory: Fire re-checks the stored row, so a job may fire late, twice or
// for a deleted notification without harm.
type Scheduler interface {
	Schedule(ctx context.Context, id uuid.UUID, deliverAt time.Time) error
	// Run serves due jobs to fire until ctx is done.
	Run(ctx context.Context, fire FireFunc) error
}

func delayUntil(now, deliverAt time.Time) time.Duration {
	if d := deliverAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
