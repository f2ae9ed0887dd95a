package reservation

import (
	"context"
	"errors"
	"fmt"

	"bazhay.app/wishlist/internal/entity"
	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	notifService "bazhay.app/wishlist/internal/modules/notification/service"
	premium "bazhay.app/wishlist/internal/modules/premium/service"
	resDto "bazhay.app/wishlist/internal/modules/reservation/dto"
	resRepo "bazhay.app/wishlist/internal/modules/reservation/repository"
	subscription "bazhay.app/wishlist/internal/modules/subscription/service"
	userRepo "bazhay.app/wishlist/internal/modules/user/repository"
	wishRepo "bazhay.app/wishlist/internal/modules/wish/repository"
	"bazhay.app/wishlist/pkg/apperror"
	"bazhay.app/wishlist/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReservationService interface {
	AttemptReserve(ctx context.Context, actorID, wishID uuid.UUID) (*resDto.ReservationResponse, error)
	SelectUser(ctx context.Context, ownerID, reservationID, candidateUserID uuid.UUID) (*resDto.ReservationResponse, error)
	Cancel(ctx context.Context, actorID, reservationID uuid.UUID) (*resDto.ReservationResponse, error)
	GetForWish(ctx context.Context, viewerID, wishID uuid.UUID) (*resDto.ReservationResponse, error)
}

type Options struct {
	// FulfillOnClose marks the wish fulfilled when its reservation closes.
	FulfillOnClose bool
}

type reservationService struct {
	repo          resRepo.ReservationRepository
	wishRepo      wishRepo.WishRepository
	userRepo      userRepo.UserRepository
	notifications notifService.NotificationService
	premium       premium.Checker
	access        subscription.Checker
	metrics       *metrics.Metrics
	log           *zap.Logger
	opts          Options
}

func NewReservationService(
	repo resRepo.ReservationRepository,
	wishRepo wishRepo.WishRepository,
	userRepo userRepo.UserRepository,
	notifications notifService.NotificationService,
	premiumChecker premium.Checker,
	access subscription.Checker,
	m *metrics.Metrics,
	log *zap.Logger,
	opts Options,
) ReservationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &reservationService{
		repo:          repo,
		wishRepo:      wishRepo,
		userRepo:      userRepo,
		notifications: notifications,
		premium:       premiumChecker,
		access:        access,
		metrics:       m,
		log:           log.Named("reservation"),
		opts:          opts,
	}
}

func (s *reservationService) AttemptReserve(ctx context.Context, actorID, wishID uuid.UUID) (resp *resDto.ReservationResponse, err error) {
	defer func() { s.record("attempt_reserve", resp, err) }()

	wish, err := s.wishRepo.FindByID(ctx, wishID)
	if err != nil {
		return nil, err
	}
	if wish.IsEditorial() {
		return nil, apperror.ErrNotReservable
	}
	if wish.OwnerID() == actorID {
		return nil, apperror.ErrSelfReservation
	}

	allowed, err := s.access.CanAccess(ctx, actorID, wish)
	if err != nil {
		return nil, fmt.Errorf("check wish access: %w", err)
	}
	if !allowed {
		return nil, apperror.Wrap(apperror.ErrForbidden, "you don't have access to this wish")
	}

	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	owner := wish.Author
	competitive, err := s.premium.IsPremium(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("check owner entitlement: %w", err)
	}

	var (
		reservationID uuid.UUID
		created       []*entity.Notification
	)
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		res, err := repo.GetOrCreateForUpdate(ctx, wish.ID)
		if err != nil {
			return err
		}
		reservationID = res.ID

		if !res.IsActive {
			if err := repo.Reopen(ctx, res.ID); err != nil {
				return fmt.Errorf("reopen reservation: %w", err)
			}
			res.IsActive, res.SelectedUserID = true, nil
		}
		if res.IsClosed() {
			return apperror.ErrAlreadyReserved
		}

		if competitive {
			added, err := repo.AddCandidate(ctx, &entity.Candidate{ReservationID: res.ID, CandidateUserID: actor.ID})
			if err != nil {
				return fmt.Errorf("add candidate: %w", err)
			}
			if !added {
				return apperror.ErrDuplicateCandidate
			}
			n, err := s.notifications.CreateInTx(ctx, tx, newCandidateMessage(owner, actor, wish, res.ID))
			if err != nil {
				return err
			}
			created = append(created, n)
			return nil
		}

		closed, err := repo.CloseIfOpen(ctx, res.ID, actor.ID)
		if err != nil {
			return fmt.Errorf("close reservation: %w", err)
		}
		if !closed {
			return apperror.ErrAlreadyReserved
		}
		if err := s.fulfill(ctx, tx, wish.ID, true); err != nil {
			return err
		}
		for _, input := range []notifDto.CreateNotificationInput{
			reservedOwnerMessage(owner, actor, wish),
			reservedActorMessage(owner, actor, wish),
		} {
			n, err := s.notifications.CreateInTx(ctx, tx, input)
			if err != nil {
				return err
			}
			created = append(created, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Schedule(ctx, created...)
	return s.load(ctx, reservationID, false)
}

func (s *reservationService) SelectUser(ctx context.Context, ownerID, reservationID, candidateUserID uuid.UUID) (resp *resDto.ReservationResponse, err error) {
	defer func() { s.record("select_user", resp, err) }()

	res, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	wish, err := s.wishRepo.FindByID(ctx, res.WishID)
	if err != nil {
		return nil, err
	}
	if wish.OwnerID() != ownerID {
		return nil, apperror.Wrap(apperror.ErrForbidden, "only the wish owner can choose a candidate")
	}

	entitled, err := s.premium.IsPremium(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("check owner entitlement: %w", err)
	}
	if !entitled {
		return nil, apperror.Wrap(apperror.ErrForbidden, "choosing a candidate requires premium")
	}

	if res.IsClosed() {
		return nil, apperror.ErrAlreadyReserved
	}
	if !res.IsActive {
		return nil, apperror.Wrap(apperror.ErrNotFound, "this reservation was cancelled")
	}

	candidate, err := s.repo.FindCandidate(ctx, res.ID, candidateUserID)
	if err != nil {
		return nil, err
	}

	var created []*entity.Notification
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		closed, err := s.repo.WithTx(tx).CloseIfOpen(ctx, res.ID, candidate.CandidateUserID)
		if err != nil {
			return fmt.Errorf("close reservation: %w", err)
		}
		if !closed {
			return apperror.ErrAlreadyReserved
		}
		if err := s.fulfill(ctx, tx, wish.ID, true); err != nil {
			return err
		}

		selected, err := s.notifications.CreateInTx(ctx, tx, selectedCandidateMessage(wish.Author, candidate.CandidateUser, wish))
		if err != nil {
			return err
		}
		closedMsg, err := s.notifications.CreateInTx(ctx, tx, closedOwnerMessage(wish.Author, candidate.CandidateUser, wish))
		if err != nil {
			return err
		}
		created = append(created, selected, closedMsg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Schedule(ctx, created...)
	return s.load(ctx, res.ID, true)
}

func (s *reservationService) Cancel(ctx context.Context, actorID, reservationID uuid.UUID) (resp *resDto.ReservationResponse, err error) {
	defer func() { s.record("cancel", resp, err) }()

	res, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	wish, err := s.wishRepo.FindByID(ctx, res.WishID)
	if err != nil {
		return nil, err
	}

	isOwner := wish.OwnerID() == actorID
	isSelected := res.SelectedUserID != nil && *res.SelectedUserID == actorID
	if !isOwner && !isSelected {
		return nil, apperror.Wrap(apperror.ErrForbidden, "only the wish owner or the reserver can cancel")
	}
	if !res.IsActive {
		return s.load(ctx, res.ID, isOwner)
	}

	var created []*entity.Notification
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Deactivate(ctx, res.ID); err != nil {
			return fmt.Errorf("deactivate reservation: %w", err)
		}
		if res.IsClosed() {
			if err := s.fulfill(ctx, tx, wish.ID, false); err != nil {
				return err
			}
		}
		if !isOwner {
			n, err := s.notifications.CreateInTx(ctx, tx, cancelledOwnerMessage(wish.Author, res.SelectedUser, wish))
			if err != nil {
				return err
			}
			created = append(created, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Schedule(ctx, created...)
	return s.load(ctx, res.ID, isOwner)
}

func (s *reservationService) GetForWish(ctx context.Context, viewerID, wishID uuid.UUID) (*resDto.ReservationResponse, error) {
	wish, err := s.wishRepo.FindByID(ctx, wishID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.access.CanAccess(ctx, viewerID, wish)
	if err != nil {
		return nil, fmt.Errorf("check wish access: %w", err)
	}
	if !allowed {
		return nil, apperror.Wrap(apperror.ErrForbidden, "you don't have access to this wish")
	}

	res, err := s.repo.FindByWishID(ctx, wishID)
	if err != nil {
		return nil, err
	}
	return resDto.ToReservationResponse(res, wish.OwnerID() == viewerID), nil
}

func (s *reservationService) fulfill(ctx context.Context, tx *gorm.DB, wishID uuid.UUID, fulfilled bool) error {
	if !s.opts.FulfillOnClose {
		return nil
	}
	if err := s.wishRepo.WithTx(tx).SetFulfilled(ctx, wishID, fulfilled); err != nil {
		return fmt.Errorf("update wish fulfillment: %w", err)
	}
	return nil
}

func (s *reservationService) load(ctx context.Context, id uuid.UUID, withCandidates bool) (*resDto.ReservationResponse, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return resDto.ToReservationResponse(res, withCandidates), nil
}

func (s *reservationService) record(operation string, resp *resDto.ReservationResponse, err error) {
	switch {
	case err == nil && resp != nil && resp.IsClosed:
		s.metrics.ReservationOutcome(operation, "closed")
	case err == nil:
		s.metrics.ReservationOutcome(operation, "ok")
	default:
		kind := apperror.KindOf(err)
		s.metrics.ReservationOutcome(operation, string(kind))
		if kind == apperror.KindInternal && !errors.Is(err, context.Canceled) {
			s.log.Error(operation, zap.Error(err))
		}
	}
}
