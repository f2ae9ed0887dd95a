package handler

import (
	"net/http"

	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	notifService "bazhay.app/wishlist/internal/modules/notification/service"
	"bazhay.app/wishlist/pkg/response"
	"bazhay.app/wishlist/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	service notifService.NotificationService
	log     *zap.Logger
}

func NewNotificationHandler(service notifService.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, log: log}
}

// GetNotifications lists delivered-or-due notifications for the caller,
// oldest first. since_id continues after a previously returned id.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	var query notifDto.ListNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, validator.FormatValidationError(err))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	notifications, err := h.service.ListFor(c.Request.Context(), userID, query)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notifications})
}

// CreateNotification stores an admin-authored notification and schedules it.
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req notifDto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validator.FormatValidationError(err))
		return
	}

	n, err := h.service.Create(c.Request.Context(), req.Input())
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, notifDto.ToResponse(n))
}

// CancelNotification removes a notification. One not yet delivered is then
// skipped by the dispatcher.
func (h *NotificationHandler) CancelNotification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}
