package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ScheduledKey = "notifications:scheduled"
	pollBatch    = 100
)

// RedisScheduler keeps jobs in a sorted set scored by due time in unix
// milliseconds. Any number of replicas may poll; ZREM decides which one
// claims a job.
type RedisScheduler struct {
	client   *redis.Client
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewRedisScheduler(client *redis.Client, interval time.Duration, log *zap.Logger) *RedisScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &RedisScheduler{
		client:   client,
		interval: interval,
		log:      log.Named("redis_scheduler"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisScheduler) Schedule(ctx context.Context, id uuid.UUID, deliverAt time.Time) error {
	err := s.client.ZAdd(ctx, ScheduledKey, redis.Z{
		Score:  float64(deliverAt.UnixMilli()),
		Member: id.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule %s: %w", id, err)
	}
	return nil
}

func (s *RedisScheduler) Run(ctx context.Context, fire FireFunc) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Poll(ctx, fire); err != nil && ctx.Err() == nil {
			s.log.Warn("poll scheduled notifications", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll claims and fires every job due by now. It returns the number fired.
func (s *RedisScheduler) Poll(ctx context.Context, fire FireFunc) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, ScheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(s.now().UnixMilli(), 10),
		Count: pollBatch,
	}).Result()
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, member := range members {
		removed, err := s.client.ZRem(ctx, ScheduledKey, member).Result()
		if err != nil {
			return fired, err
		}
		if removed == 0 {
			continue
		}

		id, err := uuid.Parse(member)
		if err != nil {
			s.log.Warn("drop malformed scheduled member", zap.String("member", member))
			continue
		}
		if err := fire(ctx, id); err != nil {
			s.log.Error("fire scheduled notification", zap.Stringer("notification_id", id), zap.Error(err))
			continue
		}
		fired++
	}
	return fired, nil
}
