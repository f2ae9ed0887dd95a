// Package testutil opens throwaway databases and seeds the fixtures shared by
// the module tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(database.Options{
		Driver:     database.DriverSQLite,
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entity.Models()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func strPtr(s string) *string { return &s }

// CreateUser inserts a user whose first name is name.
func CreateUser(t *testing.T, db *gorm.DB, name string) *entity.User {
	t.Helper()
	u := &entity.User{
		Username:  strPtr(name + "-" + uuid.NewString()[:6]),
		FirstName: strPtr(name),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePremiumUser inserts a user with an active premium payment.
func CreatePremiumUser(t *testing.T, db *gorm.DB, name string) *entity.User {
	t.Helper()
	u := CreateUser(t, db, name)
	require.NoError(t, db.Create(&entity.Premium{
		UserID:        u.ID,
		DateOfPayment: time.Now().UTC().Add(-time.Hour),
	}).Error)
	return u
}

// CreateWish inserts a wish authored by owner.
func CreateWish(t *testing.T, db *gorm.DB, owner *entity.User, name string, access entity.AccessType) *entity.Wish {
	t.Helper()
	w := &entity.Wish{Name: name, AuthorID: &owner.ID, AccessType: access}
	require.NoError(t, db.Create(w).Error)
	return w
}

// CreateBrandWish inserts an editorial wish owned by a brand.
func CreateBrandWish(t *testing.T, db *gorm.DB, name string) *entity.Wish {
	t.Helper()
	b := &entity.Brand{ID: uuid.New(), Name: "Brand"}
	require.NoError(t, db.Create(b).Error)
	w := &entity.Wish{Name: name, BrandAuthorID: &b.ID}
	require.NoError(t, db.Create(w).Error)
	return w
}

// Count returns the number of rows of model, a struct pointer or table
// name, matching the optional condition.
func Count(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.WithContext(context.Background())
	if table, ok := model.(string); ok {
		q = q.Table(table)
	} else {
		q = q.Model(model)
	}
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
