package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-signaling/internal/middleware"
	"github.com/mossy-p/voice-signaling/internal/models"
	"github.com/mossy-p/voice-signaling/internal/relationship"
)

// Publisher sends a feed event to every signaling instance.
type Publisher interface {
	Publish(ctx context.Context, msg models.SignalMessage) error
}

// GetRoom tells the caller who is on the other end of a connection, which
// role it plays in call setup and which ICE servers to use (requires session)
func GetRoom(resolver relationship.RoomResolver, iceServers []string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)
		roomID := c.Param("roomId")

		room, ok, err := resolver.ResolveRoom(c.Request.Context(), userID, roomID)
		if err != nil {
			logger.Error("Room lookup failed", "room_id", roomID, "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up connection"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return
		}
		if !room.Accepted() {
			c.JSON(http.StatusConflict, gin.H{"error": "Connection not accepted", "status": room.Status})
			return
		}

		peer := room.Other(userID)
		c.JSON(http.StatusOK, models.RoomInfo{
			RoomID:     room.ID,
			PeerUserID: peer,
			Role:       string(models.RoleFor(userID, peer)),
			Status:     room.Status,
			ICEServers: iceServers,
		})
	}
}

// Broadcast publishes a feed event to every connected socket, including
// anonymous ones (requires session)
func Broadcast(pub Publisher, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BroadcastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		msg := models.SignalMessage{
			Type:       models.SignalTypeBroadcast,
			Event:      req.Event,
			FromUserID: c.GetString(middleware.UserIDKey),
		}
		if req.Data != nil {
			data, err := json.Marshal(req.Data)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data"})
				return
			}
			msg.Data = data
		}

		if err := pub.Publish(c.Request.Context(), msg); err != nil {
			logger.Error("Failed to publish broadcast", "event", req.Event, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Broadcast queued"})
	}
}
