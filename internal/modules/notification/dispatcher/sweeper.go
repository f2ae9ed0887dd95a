package dispatcher

import (
	"context"
	"time"

	notifRepo "bazhay.app/wishlist/internal/modules/notification/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepBatch = 500

// Sweeper periodically fires overdue undelivered notifications whose jobs were
// lost by the scheduler backend.
type Sweeper struct {
	cron       *cron.Cron
	repo       notifRepo.NotificationRepository
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewSweeper(repo notifRepo.NotificationRepository, dispatcher *Dispatcher, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		cron:       cron.New(),
		repo:       repo,
		dispatcher: dispatcher,
		log:        log.Named("sweeper"),
	}
}

func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.Error("sweep overdue notifications", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("sweeper started", zap.String("schedule", schedule))
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep fires every overdue notification and returns how many it handed to
// the dispatcher.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	due, err := s.repo.FindDue(ctx, time.Now().UTC(), sweepBatch)
	if err != nil {
		return 0, err
	}
	for _, n := range due {
		if err := s.dispatcher.Fire(ctx, n.ID); err != nil {
			s.log.Warn("fire overdue notification", zap.Stringer("notification_id", n.ID), zap.Error(err))
		}
	}
	if len(due) > 0 {
		s.log.Info("swept overdue notifications", zap.Int("count", len(due)))
	}
	return len(due), nil
}
