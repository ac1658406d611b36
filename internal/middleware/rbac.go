package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Kshitij83/skillcy/internal/models"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
	"github.com/Kshitij83/skillcy/pkg/response"
)

// RoleResolver returns the role currently stored for a user.
type RoleResolver func(ctx context.Context, userID string) (models.Role, error)

// RequireRoles admits callers whose stored role is one of roles. The role in the token is only
// used when resolve is nil, so demotions take effect before the token expires.
func RequireRoles(resolve RoleResolver, roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		role := claims.Role
		if resolve != nil {
			live, err := resolve(c.Request.Context(), claims.UserID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				response.Error(c, appErrors.ErrForbidden)
				c.Abort()
				return
			case err != nil:
				response.Error(c, appErrors.Internal(err, "failed to resolve role"))
				c.Abort()
				return
			}
			role = live
		}

		if _, ok := allowed[role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
