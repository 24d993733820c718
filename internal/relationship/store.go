// Package relationship reads the match-connection and connection-request
// collections that decide who may call whom.
package relationship

import (
	"context"

	"github.com/mossy-p/voice-signaling/internal/models"
)

// Store is the read side of the relationship data owned by the CRUD API.
type Store interface {
	ConnectionsForUser(ctx context.Context, userID string) ([]models.MatchConnection, error)
	RequestsForUser(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
}

// RoomResolver finds the room with roomID among userID's relationships.
// ok is false when userID has no relationship with that id.
type RoomResolver interface {
	ResolveRoom(ctx context.Context, userID, roomID string) (room models.Room, ok bool, err error)
}
