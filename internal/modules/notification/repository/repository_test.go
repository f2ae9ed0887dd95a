package repository

import (
	"context"
	"testing"
	"time"

	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/internal/testutil"
	"bazhay.app/wishlist/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(sendAt time.Time, users ...*entity.User) *entity.Notification {
	n := &entity.Notification{MessageEN: "hello", MessageUK: "привіт", SendAt: sendAt}
	for _, u := range users {
		n.Users = append(n.Users, entity.User{ID: u.ID})
	}
	return n
}

func ids(ns []entity.Notification) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

func TestCreateAndFindByID(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Olena")
	n := newNotification(time.Now().UTC(), u)
	n.Button = []entity.Button{{
		TextEN:  "Choose",
		TextUK:  "Обрати",
		Request: entity.ButtonRequest{URL: "/api/x", Body: map[string]string{"candidate_id": u.ID.String()}},
	}}
	require.NoError(t, repo.Create(ctx, n))

	got, err := repo.FindByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u.ID}, got.UserIDs())
	require.Len(t, got.Button, 1)
	assert.Equal(t, u.ID.String(), got.Button[0].Request.Body["candidate_id"])

	// Users are referenced, not rewritten.
	assert.EqualValues(t, 1, testutil.Count(t, db, &entity.User{}, ""))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListFor(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	me := testutil.CreateUser(t, db, "Me")
	other := testutil.CreateUser(t, db, "Other")

	broadcast := newNotification(now.Add(-3 * time.Minute))
	mine := newNotification(now.Add(-2*time.Minute), me)
	theirs := newNotification(now.Add(-time.Minute), other)
	shared := newNotification(now.Add(-30*time.Second), me, other)
	future := newNotification(now.Add(10*time.Minute), me)
	for _, n := range []*entity.Notification{broadcast, mine, theirs, shared, future} {
		require.NoError(t, repo.Create(ctx, n))
	}

	first, err := repo.ListFor(ctx, me.ID, nil, 0, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{broadcast.ID, mine.ID, shared.ID}, ids(first))

	again, err := repo.ListFor(ctx, me.ID, nil, 0, now)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(again))

	rest, err := repo.ListFor(ctx, me.ID, &mine.ID, 0, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{shared.ID}, ids(rest))

	later, err := repo.ListFor(ctx, me.ID, nil, 0, now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Contains(t, ids(later), future.ID)

	limited, err := repo.ListFor(ctx, me.ID, nil, 1, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{broadcast.ID}, ids(limited))
}

func TestListForRejectsCursorTargetedAtSomeoneElse(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	me := testutil.CreateUser(t, db, "Me")
	other := testutil.CreateUser(t, db, "Other")

	theirs := newNotification(now.Add(-time.Minute), other)
	broadcast := newNotification(now.Add(-30 * time.Second))
	require.NoError(t, repo.Create(ctx, theirs))
	require.NoError(t, repo.Create(ctx, broadcast))

	_, err := repo.ListFor(ctx, me.ID, &theirs.ID, 0, now)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, missing := repo.ListFor(ctx, me.ID, ptr(uuid.New()), 0, now)
	assert.ErrorIs(t, missing, apperror.ErrNotFound)

	got, err := repo.ListFor(ctx, other.ID, &theirs.ID, 0, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{broadcast.ID}, ids(got))
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}

func TestMarkDeliveredAndFindDue(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	due := newNotification(now.Add(-time.Minute))
	pending := newNotification(now.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, due))
	require.NoError(t, repo.Create(ctx, pending))

	found, err := repo.FindDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{due.ID}, ids(found))

	ok, err := repo.MarkDelivered(ctx, due.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkDelivered(ctx, due.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err = repo.FindDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDelete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Olena")
	n := newNotification(time.Now().UTC(), u)
	require.NoError(t, repo.Create(ctx, n))

	require.NoError(t, repo.Delete(ctx, n.ID))
	_, err := repo.FindByID(ctx, n.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.EqualValues(t, 0, testutil.Count(t, db, "notification_users", ""))

	assert.ErrorIs(t, repo.Delete(ctx, n.ID), apperror.ErrNotFound)
}
