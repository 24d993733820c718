package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-signaling/internal/session"
)

// UserIDKey is the gin context key holding the authenticated user ID
const UserIDKey = "user_id"

// SessionAuth creates middleware that validates the session cookie (or bearer
// token) through the shared session store
func SessionAuth(validator session.Validator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := session.CredentialFromRequest(c.Request, cookieName)
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Session required",
			})
			return
		}

		userID, err := validator.Validate(c.Request.Context(), credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid session",
			})
			return
		}

		// Store user ID in context for handlers
		c.Set(UserIDKey, userID)
		c.Next()
	}
}
