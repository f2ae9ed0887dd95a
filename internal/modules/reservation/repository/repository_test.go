package repository

import (
	"context"
	"testing"

	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/internal/testutil"
	"bazhay.app/wishlist/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGetOrCreateForUpdateKeepsOneRow(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "Owner")
	wish := testutil.CreateWish(t, db, owner, "Bike", entity.AccessEveryone)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Transaction(ctx, func(tx *gorm.DB) error {
			res, err := repo.WithTx(tx).GetOrCreateForUpdate(ctx, wish.ID)
			if err != nil {
				return err
			}
			ids = append(ids, res.ID)
			assert.True(t, res.IsActive)
			return nil
		}))
	}

	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	assert.EqualValues(t, 1, testutil.Count(t, db, &entity.Reservation{}, ""))
}

func TestCloseIfOpen(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "Owner")
	a := testutil.CreateUser(t, db, "A")
	b := testutil.CreateUser(t, db, "B")
	wish := testutil.CreateWish(t, db, owner, "Bike", entity.AccessEveryone)

	res, err := repo.GetOrCreateForUpdate(ctx, wish.ID)
	require.NoError(t, err)

	closed, err := repo.CloseIfOpen(ctx, res.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.CloseIfOpen(ctx, res.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := repo.FindByWishID(ctx, wish.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SelectedUser)
	assert.Equal(t, a.ID, got.SelectedUser.ID)
}

func TestCandidates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "Owner")
	a := testutil.CreateUser(t, db, "A")
	wish := testutil.CreateWish(t, db, owner, "Bike", entity.AccessEveryone)

	res, err := repo.GetOrCreateForUpdate(ctx, wish.ID)
	require.NoError(t, err)

	added, err := repo.AddCandidate(ctx, &entity.Candidate{ReservationID: res.ID, CandidateUserID: a.ID})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddCandidate(ctx, &entity.Candidate{ReservationID: res.ID, CandidateUserID: a.ID})
	require.NoError(t, err)
	assert.False(t, added)

	c, err := repo.FindCandidate(ctx, res.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", *c.CandidateUser.FirstName)

	_, err = repo.FindCandidate(ctx, res.ID, owner.ID)
	assert.ErrorIs(t, err, apperror.ErrCandidateNotFound)

	require.NoError(t, repo.Deactivate(ctx, res.ID))
	got, err := repo.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Len(t, got.Candidates, 1)

	require.NoError(t, repo.Reopen(ctx, res.ID))
	got, err = repo.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.Candidates)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
