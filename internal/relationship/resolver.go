package relationship

import (
	"context"
	"fmt"

	"github.com/mossy-p/voice-signaling/internal/models"
)

// ConnectionRooms resolves rooms from accepted match connections
// (requester/accepter pairing).
type ConnectionRooms struct {
	Store Store
}

func (r ConnectionRooms) ResolveRoom(ctx context.Context, userID, roomID string) (models.Room, bool, error) {
	conns, err := r.Store.ConnectionsForUser(ctx, userID)
	if err != nil {
		return models.Room{}, false, fmt.Errorf("list connections: %w", err)
	}
	for _, c := range conns {
		if c.ID != roomID {
			continue
		}
		room := models.Room{
			ID:           c.ID,
			Participants: [2]string{c.RequesterID, c.AccepterID},
			Status:       c.Status,
		}
		if room.Has(userID) {
			return room, true, nil
		}
	}
	return models.Room{}, false, nil
}

// RequestRooms resolves rooms from connection requests (sender/receiver
// pairing).
type RequestRooms struct {
	Store Store
}

func (r RequestRooms) ResolveRoom(ctx context.Context, userID, roomID string) (models.Room, bool, error) {
	reqs, err := r.Store.RequestsForUser(ctx, userID)
	if err != nil {
		return models.Room{}, false, fmt.Errorf("list requests: %w", err)
	}
	for _, req := range reqs {
		if req.ID != roomID {
			continue
		}
		room := models.Room{
			ID:           req.ID,
			Participants: [2]string{req.SenderID, req.ReceiverID},
			Status:       req.Status,
		}
		if room.Has(userID) {
			return room, true, nil
		}
	}
	return models.Room{}, false, nil
}

// Resolvers tries each resolver in order and returns the first match. A
// caller does not know in advance which collection a room id belongs to.
type Resolvers []RoomResolver

func (rs Resolvers) ResolveRoom(ctx context.Context, userID, roomID string) (models.Room, bool, error) {
	for _, r := range rs {
		room, ok, err := r.ResolveRoom(ctx, userID, roomID)
		if err != nil {
			return models.Room{}, false, err
		}
		if ok {
			return room, true, nil
		}
	}
	return models.Room{}, false, nil
}

// NewResolver returns the standard resolver over both collections of s.
func NewResolver(s Store) RoomResolver {
	return Resolvers{ConnectionRooms{Store: s}, RequestRooms{Store: s}}
}
