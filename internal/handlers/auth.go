package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-signaling/config"
	"github.com/mossy-p/voice-signaling/internal/session"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login issues a session and sets the session cookie.
// For demo purposes, accepts any username/password combination; the real
// application signs users in through its OAuth flow and shares the store.
func Login(store *session.Store, cfg config.SessionConfig, secure bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		userID := req.Username

		token, err := store.Issue(c.Request.Context(), userID)
		if err != nil {
			logger.Error("Failed to issue session", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create session",
			})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, token, int(cfg.TTL.Seconds()), "/", "", secure, true)
		c.JSON(http.StatusOK, LoginResponse{
			Token:  token,
			UserID: userID,
		})
	}
}

// Logout revokes the caller's session. Sockets already authenticated with
// it keep their identity until they reconnect.
func Logout(store *session.Store, cfg config.SessionConfig, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := session.CredentialFromRequest(c.Request, cfg.CookieName)
		if err := store.Revoke(c.Request.Context(), credential); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		c.SetCookie(cfg.CookieName, "", -1, "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}
