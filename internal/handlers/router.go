package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-signaling/config"
	"github.com/mossy-p/voice-signaling/internal/middleware"
	"github.com/mossy-p/voice-signaling/internal/relationship"
	"github.com/mossy-p/voice-signaling/internal/session"
	"github.com/mossy-p/voice-signaling/internal/signaling"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Config    *config.Config
	Hub       *signaling.Hub
	Sessions  *session.Store
	Validator session.Validator
	Resolver  relationship.RoomResolver
	Publisher Publisher
	Logger    *slog.Logger
}

// NewRouter wires every route onto a gin engine.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	secure := cfg.Environment == "production"

	router := gin.New()
	router.Use(gin.Recovery())

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": d.Hub.Registry().Len()})
	})

	auth := middleware.SessionAuth(d.Validator, cfg.Session.CookieName)

	apiGroup := router.Group("/api")
	{
		if d.Sessions != nil {
			apiGroup.POST("/auth/login", Login(d.Sessions, cfg.Session, secure, d.Logger))
			apiGroup.POST("/auth/logout", Logout(d.Sessions, cfg.Session, secure))
		}

		// Call setup info for a connection (requires session)
		apiGroup.GET("/rooms/:roomId", auth, GetRoom(d.Resolver, cfg.RTC.StunServers, d.Logger))

		if d.Publisher != nil {
			apiGroup.POST("/broadcast", auth, Broadcast(d.Publisher, d.Logger))
		}
	}

	// WebSocket signaling endpoint
	router.GET("/ws", HandleSignaling(d.Hub, d.Validator, cfg.Session.CookieName, cfg.Signaling, d.Logger))

	return router
}
