package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mossy-p/voice-signaling/internal/models"
	"github.com/mossy-p/voice-signaling/internal/relationship"
)

// Hub is the signaling server core: it owns the registry and runs every
// inbound message through the gate and router. It knows nothing about the
// socket library; callers hand it Transports.
type Hub struct {
	registry *Registry
	gate     *Gate
	router   *Router
	logger   *slog.Logger
}

func NewHub(registry *Registry, resolver relationship.RoomResolver, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		gate:     NewGate(resolver),
		router:   NewRouter(registry),
		logger:   logger,
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Attach registers a socket and tells it who it is. identity is empty when
// authErr is set; the socket stays open either way so anonymous clients can
// still receive broadcasts.
func (h *Hub) Attach(t Transport, identity string, authErr error) *Record {
	rec := h.registry.Add(t, identity)

	h.send(rec, models.SignalMessage{
		Type:    models.SignalTypeWelcome,
		Message: "connected to signaling server",
	})

	if rec.Authenticated() {
		h.send(rec, models.SignalMessage{Type: models.SignalTypeAuthSuccess, UserID: identity})
		h.logger.Info("Connection authenticated", "conn_id", rec.ID, "user_id", identity, "total", h.registry.Len())
	} else {
		reason := "authentication failed"
		if errors.Is(authErr, ErrAuthenticationMissing) || authErr == nil {
			reason = "no session"
		}
		h.send(rec, models.SignalMessage{Type: models.SignalTypeAuthFailed, Message: reason})
		h.logger.Info("Connection unauthenticated", "conn_id", rec.ID, "error", authErr, "total", h.registry.Len())
	}
	return rec
}

// Detach removes the socket after its transport closed.
func (h *Hub) Detach(id string) {
	if rec, ok := h.registry.Remove(id); ok {
		h.logger.Info("Connection closed", "conn_id", id, "user_id", rec.Identity, "total", h.registry.Len())
	}
}

// Touch records a liveness acknowledgment for the socket.
func (h *Hub) Touch(id string) {
	h.registry.Touch(id)
}

// HandleMessage processes one raw frame read from rec's socket.
func (h *Hub) HandleMessage(ctx context.Context, rec *Record, raw []byte) {
	var msg models.SignalMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.send(rec, models.ErrorMessage("", models.CodeBadRequest, "", "invalid message format"))
		return
	}

	switch {
	case msg.Type == models.SignalTypePing:
		h.registry.Touch(rec.ID)
		h.send(rec, models.SignalMessage{Type: models.SignalTypePong})
	case msg.Type == models.SignalTypePong:
		h.registry.Touch(rec.ID)
	case msg.Type.IsSignaling():
		if err := h.Relay(ctx, rec, msg); err != nil {
			h.reject(rec, msg, err)
		}
	default:
		h.send(rec, models.ErrorMessage(msg.Type, models.CodeUnknownType, "", "unknown message type: "+string(msg.Type)))
	}
}

// Relay authorizes msg from rec and forwards it to the target.
func (h *Hub) Relay(ctx context.Context, rec *Record, msg models.SignalMessage) error {
	if err := h.gate.Authorize(ctx, rec.Identity, msg.TargetUserID, msg.ConnectionID); err != nil {
		return err
	}
	delivered, err := h.router.Forward(msg, rec.Identity)
	if err != nil {
		return err
	}
	h.logger.Debug("Relayed signal",
		"type", msg.Type, "connection_id", msg.ConnectionID,
		"from", rec.Identity, "to", msg.TargetUserID, "delivered", delivered)
	return nil
}

func (h *Hub) reject(rec *Record, msg models.SignalMessage, err error) {
	code := codeFor(err)
	text := err.Error()
	if code == models.CodeInternal {
		text = "internal error"
		h.logger.Error("Relay failed", "conn_id", rec.ID, "type", msg.Type, "error", err)
	} else {
		h.logger.Info("Relay rejected",
			"conn_id", rec.ID, "user_id", rec.Identity, "type", msg.Type,
			"connection_id", msg.ConnectionID, "target", msg.TargetUserID, "code", code, "error", err)
	}
	h.send(rec, models.ErrorMessage(msg.Type, code, msg.ConnectionID, text))
}

// Broadcast delivers msg to every registered socket, authenticated or not.
func (h *Hub) Broadcast(msg models.SignalMessage) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", "error", err)
		return 0
	}
	sent := 0
	for _, l := range h.registry.Snapshot() {
		if l.Record.Transport.Send(data) {
			sent++
		}
	}
	return sent
}

// Shutdown closes every socket.
func (h *Hub) Shutdown() {
	for _, l := range h.registry.Snapshot() {
		h.registry.Remove(l.Record.ID)
		_ = l.Record.Transport.Close()
	}
}

func (h *Hub) send(rec *Record, msg models.SignalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", "error", err)
		return
	}
	if !rec.Transport.Send(data) {
		h.logger.Warn("Failed to send message, buffer full or closed", "conn_id", rec.ID, "type", msg.Type)
	}
}
