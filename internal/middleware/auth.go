package middleware

import (
	"errors"

	premium "bazhay.app/wishlist/internal/modules/premium/service"
	"bazhay.app/wishlist/pkg/apperror"
	"bazhay.app/wishlist/pkg/auth"
	"bazhay.app/wishlist/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthMiddleware struct {
	parser  *auth.TokenParser
	premium premium.Checker
	log     *zap.Logger
}

func NewAuthMiddleware(parser *auth.TokenParser, premiumChecker premium.Checker, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		parser:  parser,
		premium: premiumChecker,
		log:     log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := m.parser.Parse(auth.ExtractToken(c.Request))
		if err != nil {
			message := "invalid or expired token"
			if errors.Is(err, auth.ErrNoToken) {
				message = "authorization required"
			}
			response.ResponseError(c, m.log, apperror.Wrap(apperror.ErrUnauthorized, message))
			c.Abort()
			return
		}

		c.Set("user_id", userID.String())
		c.Next()
	}
}

// RequirePremium must run after RequireAuth.
func (m *AuthMiddleware) RequirePremium() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			response.ResponseError(c, m.log, err)
			c.Abort()
			return
		}

		ok, err := m.premium.IsPremium(c.Request.Context(), userID)
		if err != nil {
			response.ResponseError(c, m.log, err)
			c.Abort()
			return
		}
		if !ok {
			response.ResponseError(c, m.log, apperror.Wrap(apperror.ErrForbidden, "premium access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin must run after RequireAuth. Only the listed users pass.
func (m *AuthMiddleware) RequireAdmin(admins []uuid.UUID) gin.HandlerFunc {
	allowed := make(map[uuid.UUID]struct{}, len(admins))
	for _, id := range admins {
		allowed[id] = struct{}{}
	}

	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			response.ResponseError(c, m.log, err)
			c.Abort()
			return
		}

		if _, ok := allowed[userID]; !ok {
			response.ResponseError(c, m.log, apperror.Wrap(apperror.ErrForbidden, "admin access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}
