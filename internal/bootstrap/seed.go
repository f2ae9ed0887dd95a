package bootstrap

import (
	"time"

	"bazhay.app/wishlist/internal/entity"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(entity.Models()...)
}

// Demo fixtures have fixed ids so repeated seeding is a no-op.
var (
	DemoOwnerID    = uuid.MustParse("0190a1b2-0000-7000-8000-000000000001")
	DemoReserverID = uuid.MustParse("0190a1b2-0000-7000-8000-000000000002")
	DemoWishID     = uuid.MustParse("0190a1b2-0000-7000-8000-000000000010")
)

// SeedDemo inserts an owner with premium, a second user and one public wish.
func SeedDemo(db *gorm.DB, log *zap.Logger) error {
	owner := entity.User{ID: DemoOwnerID, Username: strPtr("demo_owner"), FirstName: strPtr("Olena")}
	reserver := entity.User{ID: DemoReserverID, Username: strPtr("demo_friend"), FirstName: strPtr("Taras")}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, u := range []*entity.User{&owner, &reserver} {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(u).Error; err != nil {
				return err
			}
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.Premium{
			UserID:        DemoOwnerID,
			DateOfPayment: time.Now().UTC(),
		}).Error; err != nil {
			return err
		}

		authorID := DemoOwnerID
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.Wish{
			ID:         DemoWishID,
			Name:       "Film camera",
			AuthorID:   &authorID,
			AccessType: entity.AccessEveryone,
		}).Error; err != nil {
			return err
		}

		log.Info("demo data seeded",
			zap.String("owner_id", DemoOwnerID.String()),
			zap.String("reserver_id", DemoReserverID.String()),
			zap.String("wish_id", DemoWishID.String()),
		)
		return nil
	})
}

func strPtr(s string) *string {
	return &s
}
