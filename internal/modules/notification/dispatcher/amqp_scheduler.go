package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	WaitQueue  = "notifications.wait"
	ReadyQueue = "notifications.ready"
)

var ErrDeliveriesClosed = errors.New("amqp deliveries channel closed")

// AMQPChannel is the subset of *amqp.Channel the scheduler uses.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// AMQPScheduler parks jobs in a consumer-less wait queue with a per-message
// expiration; expired messages dead-letter into the ready queue. The broker
// only expires messages at the head of a queue, so a long delay can hold back
// shorter ones queued behind it until the Sweeper catches them.
type AMQPScheduler struct {
	ch  AMQPChannel
	log *zap.Logger
	now func() time.Time
}

func NewAMQPScheduler(ch AMQPChannel, log *zap.Logger) (*AMQPScheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if _, err := ch.QueueDeclare(ReadyQueue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", ReadyQueue, err)
	}
	if _, err := ch.QueueDeclare(WaitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": ReadyQueue,
	}); err != nil {
		return nil, fmt.Errorf("declare %s: %w", WaitQueue, err)
	}

	return &AMQPScheduler{
		ch:  ch,
		log: log.Named("amqp_scheduler"),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AMQPScheduler) Schedule(ctx context.Context, id uuid.UUID, deliverAt time.Time) error {
	msg := amqp.Publishing{
		ContentType:  "text/plain",
		Body:         []byte(id.String()),
		DeliveryMode: amqp.Persistent,
		Timestamp:    s.now(),
	}

	queue := ReadyQueue
	if delay := delayUntil(s.now(), deliverAt); delay > 0 {
		queue = WaitQueue
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	if err := s.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("schedule %s: %w", id, err)
	}
	return nil
}

func (s *AMQPScheduler) Run(ctx context.Context, fire FireFunc) error {
	deliveries, err := s.ch.Consume(ReadyQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ReadyQueue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			s.handle(ctx, d, fire)
		}
	}
}

func (s *AMQPScheduler) handle(ctx context.Context, d amqp.Delivery, fire FireFunc) {
	id, err := uuid.Parse(string(d.Body))
	if err != nil {
		s.log.Warn("drop malformed scheduled message", zap.ByteString("body", d.Body))
		_ = d.Reject(false)
		return
	}

	// Failed fires are acked too; the row stays undelivered for the Sweeper.
	if err := fire(ctx, id); err != nil {
		s.log.Error("fire scheduled notification", zap.Stringer("notification_id", id), zap.Error(err))
	}
	if err := d.Ack(false); err != nil {
		s.log.Warn("ack scheduled message", zap.Stringer("notification_id", id), zap.Error(err))
	}
}
