package signaling

import (
	"context"
	"fmt"

	"github.com/mossy-p/voice-signaling/internal/relationship"
)

// Gate decides whether sender may signal target inside roomID. It consults
// the relationship store on every call; results are never cached, so a
// relationship revoked mid-call stops the next message.
type Gate struct {
	resolver relationship.RoomResolver
}

func NewGate(resolver relationship.RoomResolver) *Gate {
	return &Gate{resolver: resolver}
}

func (g *Gate) Authorize(ctx context.Context, sender, target, roomID string) error {
	if sender == "" {
		return ErrAuthenticationMissing
	}
	if target == "" || roomID == "" {
		return fmt.Errorf("%w: connectionId and targetUserId are required", ErrBadRequest)
	}

	room, ok, err := g.resolver.ResolveRoom(ctx, sender, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookup, err)
	}
	if !ok {
		return denied("connection not found")
	}
	if room.Other(sender) != target {
		return denied("target is not the other participant")
	}
	if !room.Accepted() {
		return denied("connection not accepted")
	}
	return nil
}
