package bootstrap

import (
	"testing"

	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedDemoIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, Migrate(db))

	require.NoError(t, SeedDemo(db, zap.NewNop()))
	require.NoError(t, SeedDemo(db, zap.NewNop()))

	assert.EqualValues(t, 2, testutil.Count(t, db, &entity.User{}, "1 = 1"))
	assert.EqualValues(t, 1, testutil.Count(t, db, &entity.Wish{}, "id = ?", DemoWishID))
	assert.EqualValues(t, 1, testutil.Count(t, db, &entity.Premium{}, "user_id = ?", DemoOwnerID))
}
