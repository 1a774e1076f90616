package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ems-leave-api/internal/middleware"
	"github.com/noah-isme/ems-leave-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext projects the JWT claims into the user shape the services
// authorise against. The claims carry everything the checks need, so no
// directory lookup happens per request.
func actorFromContext(c *gin.Context) *models.User {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return &models.User{
		ID:           claims.UserID,
		Login:        claims.Login,
		FullName:     claims.FullName,
		Role:         claims.Role,
		DepartmentID: claims.DepartmentID,
	}
}
