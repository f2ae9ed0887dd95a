package response

import (
	"net/http"

	"bazhay.app/wishlist/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorBody is the JSON shape of every rejected request.
type ErrorBody struct {
	Kind    apperror.Kind `json:"kind"`
	Message string        `json:"message"`
}

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, log *zap.Logger, err error) {
	code := apperror.MapErrorToStatus(err)
	kind := apperror.KindOf(err)
	message := err.Error()

	if code == http.StatusInternalServerError {
		if log != nil {
			log.Error("internal error",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		message = apperror.ErrInternal.Error()
	}

	c.JSON(code, gin.H{"error": ErrorBody{Kind: kind, Message: message}})
}

// BadRequest writes an invalid_input error with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": ErrorBody{Kind: apperror.KindInvalidInput, Message: message}})
}
