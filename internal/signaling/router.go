package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/mossy-p/voice-signaling/internal/models"
)

// Router delivers approved messages to every live socket of the target.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Forward sends msg, annotated with from, to all sockets of its target and
// returns how many accepted it. Zero deliveries is ErrPeerUnreachable.
func (r *Router) Forward(msg models.SignalMessage, from string) (int, error) {
	data, err := json.Marshal(msg.Forwarded(from))
	if err != nil {
		return 0, fmt.Errorf("marshal forward: %w", err)
	}

	delivered := 0
	for _, rec := range r.registry.ByIdentity(msg.TargetUserID) {
		if rec.Transport.Send(data) {
			delivered++
		}
	}
	if delivered == 0 {
		return 0, ErrPeerUnreachable
	}
	return delivered, nil
}
