package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bazhay.app/wishlist/internal/entity"
	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	notifRepo "bazhay.app/wishlist/internal/modules/notification/repository"
	"bazhay.app/wishlist/internal/testutil"
	"bazhay.app/wishlist/pkg/pubsub"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]time.Time
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{jobs: make(map[uuid.UUID]time.Time)}
}

func (s *recordingScheduler) Schedule(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = at
	return nil
}

func (s *recordingScheduler) Run(ctx context.Context, _ FireFunc) error {
	<-ctx.Done()
	return nil
}

// failingBroker rejects publishes to one group and forwards the rest.
type failingBroker struct {
	pubsub.Broker
	failGroup string
}

func (b *failingBroker) Publish(ctx context.Context, group string, payload []byte) error {
	if group == b.failGroup {
		return errors.New("publish failed")
	}
	return b.Broker.Publish(ctx, group, payload)
}

type fixture struct {
	repo   notifRepo.NotificationRepository
	broker *pubsub.MemoryBroker
	sched  *recordingScheduler
	disp   *Dispatcher
}

func setup(t *testing.T) (*fixture, func(name string) *entity.User) {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		repo:   notifRepo.NewNotificationRepository(db),
		broker: pubsub.NewMemoryBroker(),
		sched:  newRecordingScheduler(),
	}
	f.disp = New(f.repo, f.broker, f.sched, nil, nil)
	return f, func(name string) *entity.User { return testutil.CreateUser(t, db, name) }
}

func (f *fixture) store(t *testing.T, sendAt time.Time, users ...*entity.User) *entity.Notification {
	t.Helper()
	n := &entity.Notification{MessageEN: "hello", MessageUK: "привіт", SendAt: sendAt}
	for _, u := range users {
		n.Users = append(n.Users, entity.User{ID: u.ID})
	}
	require.NoError(t, f.repo.Create(context.Background(), n))
	return n
}

func (f *fixture) subscribe(t *testing.T, groups ...string) pubsub.Subscription {
	t.Helper()
	sub, err := f.broker.Subscribe(context.Background(), groups...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func receive(t *testing.T, sub pubsub.Subscription) notifDto.Envelope {
	t.Helper()
	select {
	case msg := <-sub.C():
		var env notifDto.Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return notifDto.Envelope{}
	}
}

func assertSilent(t *testing.T, sub pubsub.Subscription) {
	t.Helper()
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected push %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFireTargetedOnce(t *testing.T) {
	f, newUser := setup(t)
	ctx := context.Background()
	alice, bob, carol := newUser("Alice"), newUser("Bob"), newUser("Carol")

	aliceSub := f.subscribe(t, pubsub.UserGroup(alice.ID), pubsub.BroadcastGroup)
	bobSub := f.subscribe(t, pubsub.UserGroup(bob.ID), pubsub.BroadcastGroup)
	carolSub := f.subscribe(t, pubsub.UserGroup(carol.ID), pubsub.BroadcastGroup)

	n := f.store(t, time.Now().UTC().Add(-time.Second), alice, bob)
	require.NoError(t, f.disp.Fire(ctx, n.ID))

	assert.Equal(t, n.ID, receive(t, aliceSub).Message.ID)
	assert.Equal(t, n.ID, receive(t, bobSub).Message.ID)
	assertSilent(t, carolSub)

	stored, err := f.repo.FindByID(ctx, n.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.DeliveredAt)

	require.NoError(t, f.disp.Fire(ctx, n.ID))
	assertSilent(t, aliceSub)
}

func TestFireBroadcast(t *testing.T) {
	f, newUser := setup(t)
	a, b := newUser("A"), newUser("B")
	aSub := f.subscribe(t, pubsub.UserGroup(a.ID), pubsub.BroadcastGroup)
	bSub := f.subscribe(t, pubsub.UserGroup(b.ID), pubsub.BroadcastGroup)

	n := f.store(t, time.Now().UTC())
	require.NoError(t, f.disp.Fire(context.Background(), n.ID))

	env := receive(t, aSub)
	assert.Equal(t, "hello", env.Message.MessageEN)
	assert.Empty(t, env.Message.Users)
	assert.Equal(t, n.ID, receive(t, bSub).Message.ID)
}

func TestFireDeletedNotificationIsNoop(t *testing.T) {
	f, newUser := setup(t)
	u := newUser("U")
	sub := f.subscribe(t, pubsub.UserGroup(u.ID))

	n := f.store(t, time.Now().UTC().Add(time.Minute), u)
	require.NoError(t, f.repo.Delete(context.Background(), n.ID))

	assert.NoError(t, f.disp.Fire(context.Background(), n.ID))
	assertSilent(t, sub)
}

func TestScheduledNotificationWaitsForSendTime(t *testing.T) {
	f, newUser := setup(t)
	ctx := context.Background()
	u := newUser("U")
	sub := f.subscribe(t, pubsub.UserGroup(u.ID), pubsub.BroadcastGroup)

	sendAt := time.Now().UTC().Add(10 * time.Minute)
	n := f.store(t, sendAt, u)

	require.NoError(t, f.disp.ScheduleDelivery(ctx, n.ID, sendAt))
	assert.Equal(t, sendAt, f.sched.jobs[n.ID])
	assertSilent(t, sub)

	// An early fire reschedules instead of pushing.
	delete(f.sched.jobs, n.ID)
	require.NoError(t, f.disp.Fire(ctx, n.ID))
	assertSilent(t, sub)
	assert.Contains(t, f.sched.jobs, n.ID)

	f.disp.now = func() time.Time { return sendAt.Add(time.Second) }
	require.NoError(t, f.disp.Fire(ctx, n.ID))
	assert.Equal(t, n.ID, receive(t, sub).Message.ID)
}

func TestScheduleDeliveryFiresDueInline(t *testing.T) {
	f, newUser := setup(t)
	u := newUser("U")
	sub := f.subscribe(t, pubsub.UserGroup(u.ID))

	n := f.store(t, time.Now().UTC().Add(-time.Minute), u)
	require.NoError(t, f.disp.ScheduleDelivery(context.Background(), n.ID, n.SendAt))

	assert.Equal(t, n.ID, receive(t, sub).Message.ID)
	assert.Empty(t, f.sched.jobs)
}

func TestDispatchIsolatesTargets(t *testing.T) {
	f, newUser := setup(t)
	good, bad := newUser("Good"), newUser("Bad")
	f.disp.broker = &failingBroker{Broker: f.broker, failGroup: pubsub.UserGroup(bad.ID)}
	goodSub := f.subscribe(t, pubsub.UserGroup(good.ID))

	n := f.store(t, time.Now().UTC(), bad, good)
	stored, err := f.repo.FindByID(context.Background(), n.ID)
	require.NoError(t, err)

	f.disp.Dispatch(context.Background(), stored)
	assert.Equal(t, n.ID, receive(t, goodSub).Message.ID)
}
