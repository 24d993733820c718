package relationship

import (
	"context"
	"sync"

	"github.com/mossy-p/voice-signaling/internal/models"
)

// MemoryStore is an in-process Store, used in tests and local demos.
type MemoryStore struct {
	mu       sync.RWMutex
	conns    []models.MatchConnection
	requests []models.ConnectionRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) AddConnection(c models.MatchConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns = append(m.conns, c)
}

func (m *MemoryStore) AddRequest(r models.ConnectionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, r)
}

// SetStatus updates the status of every relationship with id.
func (m *MemoryStore) SetStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.conns {
		if m.conns[i].ID == id {
			m.conns[i].Status = status
		}
	}
	for i := range m.requests {
		if m.requests[i].ID == id {
			m.requests[i].Status = status
		}
	}
}

func (m *MemoryStore) ConnectionsForUser(_ context.Context, userID string) ([]models.MatchConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.MatchConnection
	for _, c := range m.conns {
		if c.RequesterID == userID || c.AccepterID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) RequestsForUser(_ context.Context, userID string) ([]models.ConnectionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ConnectionRequest
	for _, r := range m.requests {
		if r.SenderID == userID || r.ReceiverID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}
