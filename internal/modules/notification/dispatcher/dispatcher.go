// Package dispatcher pushes stored notifications to the channel layer, either
// right away or once their send time is reached.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bazhay.app/wishlist/internal/entity"
	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	notifRepo "bazhay.app/wishlist/internal/modules/notification/repository"
	"bazhay.app/wishlist/pkg/apperror"
	"bazhay.app/wishlist/pkg/metrics"
	"bazhay.app/wishlist/pkg/pubsub"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Dispatcher struct {
	repo      notifRepo.NotificationRepository
	broker    pubsub.Broker
	scheduler Scheduler
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func New(repo notifRepo.NotificationRepository, broker pubsub.Broker, scheduler Scheduler, m *metrics.Metrics, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		repo:      repo,
		broker:    broker,
		scheduler: scheduler,
		metrics:   m,
		log:       log.Named("dispatcher"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ScheduleDelivery fires due notifications inline and defers the rest.
func (d *Dispatcher) ScheduleDelivery(ctx context.Context, id uuid.UUID, deliverAt time.Time) error {
	if delayUntil(d.now(), deliverAt) == 0 {
		return d.Fire(ctx, id)
	}
	return d.scheduler.Schedule(ctx, id, deliverAt)
}

// Run serves the scheduler until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.scheduler.Run(ctx, d.Fire)
}

// Fire delivers the notification if it still exists, is due and was not
// delivered yet. The row is claimed before publishing, so a live push happens
// at most once.
func (d *Dispatcher) Fire(ctx context.Context, id uuid.UUID) error {
	n, err := d.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			d.log.Debug("notification gone before delivery", zap.Stringer("notification_id", id))
			return nil
		}
		return fmt.Errorf("load notification %s: %w", id, err)
	}

	if n.DeliveredAt != nil {
		return nil
	}
	now := d.now()
	if n.SendAt.After(now) {
		return d.scheduler.Schedule(ctx, id, n.SendAt)
	}

	claimed, err := d.repo.MarkDelivered(ctx, id, now)
	if err != nil {
		return fmt.Errorf("mark notification %s delivered: %w", id, err)
	}
	if !claimed {
		return nil
	}

	d.Dispatch(ctx, n)
	return nil
}

// Dispatch pushes n to each target independently, or once to the broadcast
// group. Publish errors are logged and counted only.
func (d *Dispatcher) Dispatch(ctx context.Context, n *entity.Notification) {
	payload, err := json.Marshal(notifDto.Envelope{Message: notifDto.ToResponse(n)})
	if err != nil {
		d.log.Error("encode notification", zap.Stringer("notification_id", n.ID), zap.Error(err))
		return
	}

	if n.IsBroadcast() {
		d.publish(ctx, n.ID, pubsub.BroadcastGroup, payload, "broadcast")
		return
	}
	for _, userID := range n.UserIDs() {
		d.publish(ctx, n.ID, pubsub.UserGroup(userID), payload, "user")
	}
}

func (d *Dispatcher) publish(ctx context.Context, id uuid.UUID, group string, payload []byte, target string) {
	if err := d.broker.Publish(ctx, group, payload); err != nil {
		d.metrics.PublishFailed()
		d.log.Warn("publish notification",
			zap.Stringer("notification_id", id),
			zap.String("group", group),
			zap.Error(err),
		)
		return
	}
	d.metrics.Dispatched(target)
}
