package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lessonloop/lessonloop-api/internal/middleware"
	"github.com/lessonloop/lessonloop-api/internal/models"
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
