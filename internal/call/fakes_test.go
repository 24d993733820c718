package call

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mossy-p/voice-signaling/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMedia struct {
	mu    sync.Mutex
	stops int
}

func (m *fakeMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *fakeMedia) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

type fakeMediaSource struct {
	mu       sync.Mutex
	err      error
	acquired []*fakeMedia
}

func (s *fakeMediaSource) Acquire(_ context.Context) (LocalMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	m := &fakeMedia{}
	s.acquired = append(s.acquired, m)
	return m, nil
}

func (s *fakeMediaSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acquired)
}

// fakeSession records every operation in order. When connectOn is set it
// reports connected from its own goroutine once that operation runs.
type fakeSession struct {
	events    SessionEvents
	connectOn string
	candidate *models.ICECandidate

	mu     sync.Mutex
	ops    []string
	added  []string
	closed int
}

func (s *fakeSession) record(op string) {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
	if op == s.connectOn && s.events.OnState != nil {
		go s.events.OnState(TransportConnected)
	}
}

func (s *fakeSession) AddMedia(_ LocalMedia) error {
	s.record("add-media")
	return nil
}

func (s *fakeSession) CreateOffer(_ context.Context) (models.SessionDescription, error) {
	s.record("create-offer")
	s.emitCandidate()
	return models.SessionDescription{Type: "offer", SDP: "v=0 offer"}, nil
}

func (s *fakeSession) CreateAnswer(_ context.Context) (models.SessionDescription, error) {
	s.record("create-answer")
	s.emitCandidate()
	return models.SessionDescription{Type: "answer", SDP: "v=0 answer"}, nil
}

func (s *fakeSession) emitCandidate() {
	if s.candidate != nil && s.events.OnCandidate != nil {
		s.events.OnCandidate(*s.candidate)
	}
}

func (s *fakeSession) SetRemoteDescription(_ context.Context, desc models.SessionDescription) error {
	s.record("set-remote:" + desc.Type)
	return nil
}

func (s *fakeSession) AddICECandidate(c models.ICECandidate) error {
	s.mu.Lock()
	s.added = append(s.added, c.Candidate)
	s.mu.Unlock()
	s.record("add-candidate:" + c.Candidate)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *fakeSession) candidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.added...)
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFactory struct {
	connectOn string
	candidate *models.ICECandidate

	mu       sync.Mutex
	sessions []*fakeSession
}

func (f *fakeFactory) NewSession(events SessionEvents) (PeerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSession{events: events, connectOn: f.connectOn, candidate: f.candidate}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeFactory) last() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

// fakeSignaler records sent messages. Messages of type failOn are rejected
// with err instead.
type fakeSignaler struct {
	mu     sync.Mutex
	failOn models.SignalType
	err    error
	sent   []models.SignalMessage
}

func (s *fakeSignaler) Send(_ context.Context, msg models.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && msg.Type == s.failOn {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSignaler) failType(t models.SignalType, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn, s.err = t, err
}

func (s *fakeSignaler) types() []models.SignalType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SignalType, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.Type)
	}
	return out
}

func (s *fakeSignaler) count(t models.SignalType) int {
	n := 0
	for _, got := range s.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (s *fakeSignaler) messages() []models.SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SignalMessage(nil), s.sent...)
}

// phaseLog collects OnState notifications.
type phaseLog struct {
	mu     sync.Mutex
	phases []Phase
}

func (l *phaseLog) record(p Phase, _ *Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phases = append(l.phases, p)
}

func (l *phaseLog) count(p Phase) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, got := range l.phases {
		if got == p {
			n++
		}
	}
	return n
}

var errDenied = errors.New("permission denied")
