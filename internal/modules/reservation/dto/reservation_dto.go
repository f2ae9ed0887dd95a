package dto

import (
	"time"

	"bazhay.app/wishlist/internal/entity"
	"github.com/google/uuid"
)

type ReserveRequest struct {
	WishID string `json:"wish_id" binding:"required,uuid"`
}

type SelectUserRequest struct {
	CandidateID string `json:"candidate_id" binding:"required,uuid"`
}

type ReservationQuery struct {
	Wish string `form:"wish" binding:"required,uuid"`
}

type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
	Name     string    `json:"name"`
}

type CandidateResponse struct {
	ID        uuid.UUID    `json:"id"`
	User      UserResponse `json:"user"`
	CreatedAt time.Time    `json:"created_at"`
}

type ReservationResponse struct {
	ID           uuid.UUID     `json:"id"`
	WishID       uuid.UUID     `json:"wish_id"`
	SelectedUser *UserResponse `json:"selected_user"`
	IsActive     bool          `json:"is_active"`
	IsClosed     bool          `json:"is_closed"`
	// Candidates is only filled for the wish owner.
	Candidates []CandidateResponse `json:"candidates,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func toUserResponse(u *entity.User) UserResponse {
	resp := UserResponse{ID: u.ID, Name: u.DisplayName()}
	if u.Username != nil {
		resp.Username = *u.Username
	}
	return resp
}

// ToReservationResponse renders r; withCandidates is true only for the owner.
func ToReservationResponse(r *entity.Reservation, withCandidates bool) *ReservationResponse {
	resp := &ReservationResponse{
		ID:        r.ID,
		WishID:    r.WishID,
		IsActive:  r.IsActive,
		IsClosed:  r.IsClosed(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.SelectedUser != nil {
		u := toUserResponse(r.SelectedUser)
		resp.SelectedUser = &u
	} else if r.SelectedUserID != nil {
		resp.SelectedUser = &UserResponse{ID: *r.SelectedUserID}
	}

	if withCandidates {
		resp.Candidates = make([]CandidateResponse, 0, len(r.Candidates))
		for _, c := range r.Candidates {
			cr := CandidateResponse{ID: c.ID, CreatedAt: c.CreatedAt, User: UserResponse{ID: c.CandidateUserID}}
			if c.CandidateUser != nil {
				cr.User = toUserResponse(c.CandidateUser)
			}
			resp.Candidates = append(resp.Candidates, cr)
		}
	}
	return resp
}
