package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/recmind-app/recmind-server/internal/models"
)

// publicUser shapes the client-facing view of a user record.
func publicUser(user *models.User) gin.H {
	return gin.H{
		"id":       user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"avatar":   user.Avatar,
		"provider": user.Provider,
		"verified": user.Verified,
	}
}
