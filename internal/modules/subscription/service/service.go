package subscription

import (
	"context"

	"bazhay.app/wishlist/internal/entity"
	subRepo "bazhay.app/wishlist/internal/modules/subscription/repository"
	"github.com/google/uuid"
)

type Checker interface {
	IsSubscribed(ctx context.Context, userID, authorID uuid.UUID) (bool, error)
	// CanAccess applies the wish access policy for viewerID.
	CanAccess(ctx context.Context, viewerID uuid.UUID, wish *entity.Wish) (bool, error)
}

type checker struct {
	repo subRepo.SubscriptionRepository
}

func NewChecker(repo subRepo.SubscriptionRepository) Checker {
	return &checker{repo: repo}
}

func (c *checker) IsSubscribed(ctx context.Context, userID, authorID uuid.UUID) (bool, error) {
	return c.repo.Exists(ctx, userID, authorID)
}

func (c *checker) CanAccess(ctx context.Context, viewerID uuid.UUID, wish *entity.Wish) (bool, error) {
	if wish.IsEditorial() || wish.OwnerID() == viewerID {
		return true, nil
	}

	switch wish.AccessType {
	case entity.AccessSubscribers:
		return c.IsSubscribed(ctx, viewerID, wish.OwnerID())
	case entity.AccessOnlyMe:
		return false, nil
	default:
		return true, nil
	}
}
