package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ems-leave-api/internal/models"
	appErrors "github.com/noah-isme/ems-leave-api/pkg/errors"
	"github.com/noah-isme/ems-leave-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. Finer-grained
// checks (department scoping, request ownership) live in the service layer.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
