package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryScheduler keeps jobs in process timers. Jobs are lost on restart and
// recovered by the Sweeper.
type MemoryScheduler struct {
	log *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	fire    FireFunc
	pending []uuid.UUID
	timers  map[*time.Timer]struct{}
}

func NewMemoryScheduler(log *zap.Logger) *MemoryScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemoryScheduler{
		log:    log.Named("memory_scheduler"),
		timers: make(map[*time.Timer]struct{}),
	}
}

func (s *MemoryScheduler) Schedule(_ context.Context, id uuid.UUID, deliverAt time.Time) error {
	delay := delayUntil(time.Now().UTC(), deliverAt)

	var t *time.Timer
	s.mu.Lock()
	defer s.mu.Unlock()
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		fire, ctx := s.fire, s.ctx
		if fire == nil {
			s.pending = append(s.pending, id)
		}
		s.mu.Unlock()

		if fire != nil {
			s.run(ctx, fire, id)
		}
	})
	s.timers[t] = struct{}{}
	return nil
}

func (s *MemoryScheduler) Run(ctx context.Context, fire FireFunc) error {
	s.mu.Lock()
	s.ctx, s.fire = ctx, fire
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, id := range pending {
		s.run(ctx, fire, id)
	}

	<-ctx.Done()

	s.mu.Lock()
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	s.fire = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryScheduler) run(ctx context.Context, fire FireFunc, id uuid.UUID) {
	if ctx.Err() != nil {
		return
	}
	if err := fire(ctx, id); err != nil {
		s.log.Error("fire scheduled notification", zap.Stringer("notification_id", id), zap.Error(err))
	}
}
