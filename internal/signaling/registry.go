package signaling

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport is the server's handle on one live socket.
type Transport interface {
	// Send enqueues data without blocking. It reports false when the
	// socket is closed or its buffer is full.
	Send(data []byte) bool
	// Ping sends a transport-level liveness probe.
	Ping() error
	// Close terminates the socket.
	Close() error
}

// Record is the registry entry for one socket. Identity is empty for sockets
// that failed authentication and never changes after registration.
type Record struct {
	ID          string
	Identity    string
	Transport   Transport
	ConnectedAt time.Time

	lastLiveness time.Time
}

// Authenticated reports whether the socket has a resolved identity.
func (r *Record) Authenticated() bool {
	return r.Identity != ""
}

// Registry tracks live sockets. It is owned by a Hub; all methods are safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Add registers t under a fresh connection ID.
func (r *Registry) Add(t Transport, identity string) *Record {
	now := r.now()
	rec := &Record{
		ID:           uuid.New().String(),
		Identity:     identity,
		Transport:    t,
		ConnectedAt:  now,
		lastLiveness: now,
	}

	r.mu.Lock()
	r.records[rec.ID] = rec
	r.mu.Unlock()
	return rec
}

// Remove deletes the record. ok is false if it was already gone.
func (r *Registry) Remove(id string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
	}
	return rec, ok
}

func (r *Registry) Get(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Touch marks the socket as alive now.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		rec.lastLiveness = r.now()
	}
}

// LastLiveness returns the time of the last liveness confirmation.
func (r *Registry) LastLiveness(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return time.Time{}, false
	}
	return rec.lastLiveness, true
}

// ByIdentity returns every socket registered for identity. Unauthenticated
// sockets never match.
func (r *Registry) ByIdentity(identity string) []*Record {
	if identity == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.records {
		if rec.Identity == identity {
			out = append(out, rec)
		}
	}
	return out
}

// Snapshot returns all records with their liveness times, copied so callers
// may act on them without holding the lock.
func (r *Registry) Snapshot() []Liveness {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Liveness, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, Liveness{Record: rec, Last: rec.lastLiveness})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

type Liveness struct {
	Record *Record
	Last   time.Time
}
