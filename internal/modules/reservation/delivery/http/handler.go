package handler

import (
	"net/http"

	resDto "bazhay.app/wishlist/internal/modules/reservation/dto"
	reservation "bazhay.app/wishlist/internal/modules/reservation/service"
	"bazhay.app/wishlist/pkg/response"
	"bazhay.app/wishlist/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service reservation.ReservationService
	log     *zap.Logger
}

func NewReservationHandler(service reservation.ReservationService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{service: service, log: log}
}

func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req resDto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validator.FormatValidationError(err))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	resp, err := h.service.AttemptReserve(c.Request.Context(), userID, uuid.MustParse(req.WishID))
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *ReservationHandler) GetForWish(c *gin.Context) {
	var query resDto.ReservationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, validator.FormatValidationError(err))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	resp, err := h.service.GetForWish(c.Request.Context(), userID, uuid.MustParse(query.Wish))
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) SelectUser(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation id")
		return
	}

	var req resDto.SelectUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validator.FormatValidationError(err))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	resp, err := h.service.SelectUser(c.Request.Context(), userID, reservationID, uuid.MustParse(req.CandidateID))
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation id")
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), userID, reservationID)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
