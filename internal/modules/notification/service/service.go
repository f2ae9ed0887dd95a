package notification

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"bazhay.app/wishlist/internal/entity"
	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	notifRepo "bazhay.app/wishlist/internal/modules/notification/repository"
	"bazhay.app/wishlist/pkg/apperror"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DeliveryScheduler arranges for a stored notification to be pushed at deliverAt.
type DeliveryScheduler interface {
	ScheduleDelivery(ctx context.Context, id uuid.UUID, deliverAt time.Time) error
}

type NotificationService interface {
	// Create stores the notification and schedules its delivery.
	Create(ctx context.Context, input notifDto.CreateNotificationInput) (*entity.Notification, error)
	// CreateDeliveredInTx stores an already delivered notification inside tx,
	// for pushes the caller performs itself after commit.
	CreateDeliveredInTx(ctx context.Context, tx *gorm.DB, input notifDto.CreateNotificationInput) (*entity.Notification, error)
	// CreateInTx only stores; the caller calls Schedule after commit.
	CreateInTx(ctx context.Context, tx *gorm.DB, input notifDto.CreateNotificationInput) (*entity.Notification, error)
	Schedule(ctx context.Context, notifications ...*entity.Notification)
	ListFor(ctx context.Context, userID uuid.UUID, query notifDto.ListNotificationsQuery) ([]notifDto.NotificationResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type notificationService struct {
	repo      notifRepo.NotificationRepository
	scheduler DeliveryScheduler
	policy    *bluemonday.Policy
	log       *zap.Logger
	now       func() time.Time
	// newBackOff builds the retry policy of a single store write.
	newBackOff func() backoff.BackOff
}

func NewNotificationService(repo notifRepo.NotificationRepository, scheduler DeliveryScheduler, log *zap.Logger) NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &notificationService{
		repo:      repo,
		scheduler: scheduler,
		policy:    bluemonday.StrictPolicy(),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

func (s *notificationService) Create(ctx context.Context, input notifDto.CreateNotificationInput) (*entity.Notification, error) {
	n, err := s.build(input)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, n); err != nil {
		return nil, err
	}

	s.Schedule(ctx, n)
	return n, nil
}

func (s *notificationService) CreateDeliveredInTx(ctx context.Context, tx *gorm.DB, input notifDto.CreateNotificationInput) (*entity.Notification, error) {
	n, err := s.build(input)
	if err != nil {
		return nil, err
	}
	deliveredAt := n.SendAt
	n.DeliveredAt = &deliveredAt
	if err := s.repo.WithTx(tx).Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	return n, nil
}

// store retries transient write errors. A retried insert reuses the generated
// id, so at most one attempt lands.
func (s *notificationService) store(ctx context.Context, n *entity.Notification) error {
	err := backoff.Retry(func() error {
		if err := s.repo.Create(ctx, n); err != nil {
			s.log.Warn("store notification", zap.Stringer("notification_id", n.ID), zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(s.newBackOff(), ctx))
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

func (s *notificationService) CreateInTx(ctx context.Context, tx *gorm.DB, input notifDto.CreateNotificationInput) (*entity.Notification, error) {
	n, err := s.build(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.WithTx(tx).Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	return n, nil
}

// Schedule never fails the caller: a notification whose delivery could not be
// scheduled is still listed and is picked up by the sweeper.
func (s *notificationService) Schedule(ctx context.Context, notifications ...*entity.Notification) {
	for _, n := range notifications {
		if n == nil {
			continue
		}
		if err := s.scheduler.ScheduleDelivery(ctx, n.ID, n.SendAt); err != nil {
			s.log.Error("schedule notification delivery",
				zap.Stringer("notification_id", n.ID),
				zap.Time("send_at", n.SendAt),
				zap.Error(err),
			)
		}
	}
}

func (s *notificationService) ListFor(ctx context.Context, userID uuid.UUID, query notifDto.ListNotificationsQuery) ([]notifDto.NotificationResponse, error) {
	var sinceID *uuid.UUID
	if query.SinceID != "" {
		id, err := uuid.Parse(query.SinceID)
		if err != nil {
			return nil, apperror.Wrap(apperror.ErrInvalidInput, "invalid since_id")
		}
		sinceID = &id
	}

	rows, err := s.repo.ListFor(ctx, userID, sinceID, query.Limit, s.now())
	if err != nil {
		return nil, err
	}

	out := make([]notifDto.NotificationResponse, 0, len(rows))
	for i := range rows {
		out = append(out, notifDto.ToResponse(&rows[i]))
	}
	return out, nil
}

func (s *notificationService) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *notificationService) build(input notifDto.CreateNotificationInput) (*entity.Notification, error) {
	messageEN := s.sanitize(input.MessageEN)
	messageUK := s.sanitize(input.MessageUK)
	if messageEN == "" || messageUK == "" {
		return nil, apperror.Wrap(apperror.ErrInvalidInput, "notification text is required in both languages")
	}

	sendAt := s.now()
	if input.SendAt != nil && !input.SendAt.IsZero() {
		sendAt = input.SendAt.UTC()
	}

	buttons := make([]entity.Button, 0, len(input.Buttons))
	for _, b := range input.Buttons {
		b.TextEN = s.sanitize(b.TextEN)
		b.TextUK = s.sanitize(b.TextUK)
		buttons = append(buttons, b)
	}

	n := &entity.Notification{
		ID:        uuid.Must(uuid.NewV7()),
		MessageEN: messageEN,
		MessageUK: messageUK,
		Button:    buttons,
		SendAt:    sendAt,
	}
	seen := make(map[uuid.UUID]struct{}, len(input.UserIDs))
	for _, id := range input.UserIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n.Users = append(n.Users, entity.User{ID: id})
	}
	return n, nil
}

const maxSanitizePasses = 4

// sanitize strips markup and returns plain text. Entities are decoded for
// display, and the result is sanitised again until decoding uncovers no more
// markup. Input that never settles is returned in its escaped form.
func (s *notificationService) sanitize(text string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		clean := html.UnescapeString(s.policy.Sanitize(text))
		if clean == text {
			return strings.TrimSpace(clean)
		}
		text = clean
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}
