package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
	"github.com/cai360/TVBsAdScheduler/pkg/response"
)

// RequireRoles only lets callers holding one of roles through. Must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not perform this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireEditor admits operators allowed to change arrangements.
func RequireEditor() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		switch {
		case claims == nil:
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
		case !claims.CanEdit():
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, claims.Operator()+" has read-only access"))
			c.Abort()
		default:
			c.Next()
		}
	}
}
