package reservation

import (
	"fmt"

	"bazhay.app/wishlist/internal/entity"
	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	"github.com/google/uuid"
)

// SelectUserPath is the action a "new candidate" button calls back.
func SelectUserPath(reservationID uuid.UUID) string {
	return fmt.Sprintf("/api/reservations/%s/select_user", reservationID)
}

func newCandidateMessage(owner, candidate *entity.User, wish *entity.Wish, reservationID uuid.UUID) notifDto.CreateNotificationInput {
	name := candidate.DisplayName()
	return notifDto.CreateNotificationInput{
		MessageEN: fmt.Sprintf("%s wants to fulfill your wish \"%s\". Choose who will make it come true.", name, wish.Name),
		MessageUK: fmt.Sprintf("%s хоче виконати твоє бажання «%s». Обери, хто його здійснить.", name, wish.Name),
		UserIDs:   []uuid.UUID{owner.ID},
		Buttons: []entity.Button{{
			TextEN: "Choose",
			TextUK: "Обрати",
			Request: entity.ButtonRequest{
				URL:  SelectUserPath(reservationID),
				Body: map[string]string{"candidate_id": candidate.ID.String()},
			},
			ResponseOkText: &entity.LocalizedText{
				TextEN: fmt.Sprintf("Done! %s will fulfill your wish.", name),
				TextUK: fmt.Sprintf("Готово! %s виконає твоє бажання.", name),
			},
			ResponseNotOkText: &entity.LocalizedText{
				TextEN: "This candidate can't be chosen anymore.",
				TextUK: "Цього кандидата вже не можна обрати.",
			},
		}},
	}
}

func reservedOwnerMessage(owner, actor *entity.User, wish *entity.Wish) notifDto.CreateNotificationInput {
	return notifDto.CreateNotificationInput{
		MessageEN: fmt.Sprintf("%s reserved your wish \"%s\".", actor.DisplayName(), wish.Name),
		MessageUK: fmt.Sprintf("%s забронював(ла) твоє бажання «%s».", actor.DisplayName(), wish.Name),
		UserIDs:   []uuid.UUID{owner.ID},
	}
}

func reservedActorMessage(owner, actor *entity.User, wish *entity.Wish) notifDto.CreateNotificationInput {
	return notifDto.CreateNotificationInput{
		MessageEN: fmt.Sprintf("You reserved the wish \"%s\" of %s.", wish.Name, owner.DisplayName()),
		MessageUK: fmt.Sprintf("Ти забронював(ла) бажання «%s» користувача %s.", wish.Name, owner.DisplayName()),
		UserIDs:   []uuid.UUID{actor.ID},
	}
}

func selectedCandidateMessage(owner, candidate *entity.User, wish *entity.Wish) notifDto.CreateNotificationInput {
	return notifDto.CreateNotificationInput{
		MessageEN: fmt.Sprintf("%s chose you to fulfill the wish \"%s\".", owner.DisplayName(), wish.Name),
		MessageUK: fmt.Sprintf("%s обрав(ла) тебе для виконання бажання «%s».", owner.DisplayName(), wish.Name),
		UserIDs:   []uuid.UUID{candidate.ID},
	}
}

func closedOwnerMessage(owner, candidate *entity.User, wish *entity.Wish) notifDto.CreateNotificationInput {
	return notifDto.CreateNotificationInput{
		MessageEN: fmt.Sprintf("You chose %s to fulfill your wish \"%s\". The reservation is closed.", candidate.DisplayName(), wish.Name),
		MessageUK: fmt.Sprintf("Ти обрав(ла) %s для виконання бажання «%s». Бронювання закрито.", candidate.DisplayName(), wish.Name),
		UserIDs:   []uuid.UUID{owner.ID},
	}
}

func cancelledOwnerMessage(owner, actor *entity.User, wish *entity.Wish) notifDto.CreateNotificationInput {
	return notifDto.CreateNotificationInput{
		MessageEN: fmt.Sprintf("%s cancelled the reservation of your wish \"%s\".", actor.DisplayName(), wish.Name),
		MessageUK: fmt.Sprintf("%s скасував(ла) бронювання твого бажання «%s».", actor.DisplayName(), wish.Name),
		UserIDs:   []uuid.UUID{owner.ID},
	}
}
