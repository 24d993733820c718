// Package call drives WebRTC session negotiation for one-to-one voice calls
// over the signaling server.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mossy-p/voice-signaling/internal/models"
)

// Phase is the negotiation state of a Call.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAcquiringMedia Phase = "acquiring-media"
	PhaseReady          Phase = "announced-ready"
	PhaseOffering       Phase = "offering"
	PhaseAwaitingOffer  Phase = "awaiting-offer"
	PhaseAnswered       Phase = "answered"
	PhaseConnected      Phase = "connected"
	PhaseFailed         Phase = "failed"
	PhaseClosed         Phase = "closed"
)

// rank orders the forward phases. Offering and awaiting-offer are the two
// branches of the same step.
var rank = map[Phase]int{
	PhaseIdle:           0,
	PhaseAcquiringMedia: 1,
	PhaseReady:          2,
	PhaseOffering:       3,
	PhaseAwaitingOffer:  3,
	PhaseAnswered:       4,
	PhaseConnected:      5,
}

func (p Phase) terminal() bool {
	return p == PhaseFailed || p == PhaseClosed
}

// Config configures a Call.
type Config struct {
	RoomID   string
	LocalID  string
	PeerID   string
	Media    MediaSource
	Sessions SessionFactory
	Signaler Signaler
	Logger   *slog.Logger

	// NegotiationTimeout bounds the time from sending an offer or answer to
	// reaching connected. Zero disables it.
	NegotiationTimeout time.Duration

	// OnState is called after every phase change, outside any lock.
	OnState func(phase Phase, failure *Failure)
	// OnNotice reports non-fatal conditions such as the peer being offline.
	OnNotice func(failure *Failure)
}

// negotiation holds the latches. Every field is guarded by Call.mu and only
// changed through Call methods.
type negotiation struct {
	peerReady      bool // a ready signal arrived from the peer
	readyEchoed    bool // our ready was re-sent after the peer's first ready
	offerSent      bool // caller: an offer send is in flight or done
	offerReceived  bool // callee: the first offer has been taken
	answerReceived bool // caller: the answer has been taken
	remoteSet      bool // a remote description is applied
	queued         []models.ICECandidate
}

// Call is the client-side state machine for one call in one room. Role is
// fixed at construction: the smaller identity offers, the larger answers.
type Call struct {
	cfg  Config
	role models.Role
	log  *slog.Logger

	// opMu serializes operations on the peer session so queued candidates
	// are applied in arrival order.
	opMu sync.Mutex

	mu        sync.Mutex
	phase     Phase
	neg       negotiation
	media     LocalMedia
	mediaDone chan struct{}
	mediaErr  error
	session   PeerSession
	timer     *time.Timer
	failure   *Failure
}

func New(cfg Config) *Call {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Call{
		cfg:   cfg,
		role:  models.RoleFor(cfg.LocalID, cfg.PeerID),
		log:   logger.With("room_id", cfg.RoomID, "peer", cfg.PeerID),
		phase: PhaseIdle,
	}
}

func (c *Call) RoomID() string    { return c.cfg.RoomID }
func (c *Call) PeerID() string    { return c.cfg.PeerID }
func (c *Call) Role() models.Role { return c.role }

func (c *Call) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Failure returns the failure that ended the call, if any.
func (c *Call) Failure() *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Done reports whether the call reached failed or closed.
func (c *Call) Done() bool {
	return c.Phase().terminal()
}

// advanceLocked moves forward to p. Backward moves and moves out of a
// terminal phase are ignored. Must hold mu.
func (c *Call) advanceLocked(p Phase) bool {
	if c.phase.terminal() || rank[p] <= rank[c.phase] {
		return false
	}
	c.phase = p
	return true
}

func (c *Call) notify(p Phase, f *Failure) {
	c.log.Debug("Call phase", "phase", p, "role", c.role)
	if c.cfg.OnState != nil {
		c.cfg.OnState(p, f)
	}
}

func (c *Call) advance(p Phase) {
	c.mu.Lock()
	moved := c.advanceLocked(p)
	c.mu.Unlock()
	if moved {
		c.notify(p, nil)
	}
}

// Start acquires local media and announces readiness to the peer. A media
// failure ends the call before anything is sent.
func (c *Call) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrCallStarted
	}
	c.phase = PhaseAcquiringMedia
	c.mu.Unlock()
	c.notify(PhaseAcquiringMedia, nil)

	if err := c.ensureMedia(ctx); err != nil {
		return err
	}
	if c.Done() {
		return ErrClosed
	}

	c.mu.Lock()
	// A peer that announced itself first hears this ready; no echo needed.
	if c.neg.peerReady {
		c.neg.readyEchoed = true
	}
	c.mu.Unlock()

	c.advance(PhaseReady)
	if err := c.sendReady(ctx); err != nil {
		return err
	}

	if c.role == models.RoleCallee {
		c.advance(PhaseAwaitingOffer)
		return nil
	}
	return c.maybeOffer(ctx)
}

func (c *Call) sendReady(ctx context.Context) error {
	if err := c.send(ctx, models.SignalMessage{Type: models.SignalTypeReady}); err != nil {
		f := newFailure(CategorySignaling, ErrSignaling, err)
		c.fail(f)
		return f
	}
	return nil
}

// ensureMedia acquires local media once. Concurrent callers wait for the
// first acquisition.
func (c *Call) ensureMedia(ctx context.Context) error {
	c.mu.Lock()
	if c.phase.terminal() {
		c.mu.Unlock()
		return ErrClosed
	}
	if done := c.mediaDone; done != nil {
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.mediaErr
	}
	done := make(chan struct{})
	c.mediaDone = done
	c.mu.Unlock()

	m, err := c.cfg.Media.Acquire(ctx)

	c.mu.Lock()
	closed := c.phase.terminal()
	switch {
	case err != nil:
		c.mediaErr = newFailure(CategoryMedia, ErrMediaAcquisition, err)
	case closed:
		c.mediaErr = ErrClosed
	default:
		c.media = m
	}
	mediaErr := c.mediaErr
	close(done)
	c.mu.Unlock()

	if err == nil && closed {
		m.Stop()
	}
	if err != nil {
		c.fail(mediaErr.(*Failure))
	}
	return mediaErr
}

// maybeOffer sends the offer once both local media and the peer's ready
// signal are present, whichever arrived second.
func (c *Call) maybeOffer(ctx context.Context) error {
	c.mu.Lock()
	if c.role != models.RoleCaller || c.phase.terminal() || c.neg.offerSent ||
		c.media == nil || !c.neg.peerReady {
		c.mu.Unlock()
		return nil
	}
	c.neg.offerSent = true
	moved := c.advanceLocked(PhaseOffering)
	c.mu.Unlock()
	if moved {
		c.notify(PhaseOffering, nil)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	err := c.sendOffer(ctx)
	if err != nil {
		c.resetOffer()
		c.log.Warn("Offer not sent, will retry on next ready", "error", err)
		return err
	}
	c.armTimer()
	return nil
}

func (c *Call) sendOffer(ctx context.Context) error {
	session, err := c.ensureSession()
	if err != nil {
		return err
	}
	offer, err := session.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	raw, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return c.send(ctx, models.SignalMessage{Type: models.SignalTypeOffer, Offer: raw})
}

// resetOffer clears the offer latch after a failed or undeliverable offer
// so the next ready signal from the peer triggers a fresh one.
func (c *Call) resetOffer() {
	c.mu.Lock()
	if c.phase.terminal() || !c.neg.offerSent || c.neg.answerReceived {
		c.mu.Unlock()
		return
	}
	session := c.session
	c.session = nil
	c.neg.offerSent = false
	c.neg.peerReady = false
	c.neg.remoteSet = false
	c.neg.queued = nil
	c.stopTimerLocked()
	moved := false
	if c.phase == PhaseOffering {
		c.phase = PhaseReady
		moved = true
	}
	c.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
	if moved {
		c.notify(PhaseReady, nil)
	}
}

// ensureSession creates the peer session with local media attached. Must
// hold opMu.
func (c *Call) ensureSession() (PeerSession, error) {
	c.mu.Lock()
	if c.phase.terminal() {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.session != nil {
		s := c.session
		c.mu.Unlock()
		return s, nil
	}
	media := c.media
	c.mu.Unlock()

	session, err := c.cfg.Sessions.NewSession(SessionEvents{
		OnCandidate: c.onLocalCandidate,
		OnState:     c.onTransportState,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if media != nil {
		if err := session.AddMedia(media); err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("add media: %w", err)
		}
	}

	c.mu.Lock()
	if c.phase.terminal() {
		c.mu.Unlock()
		_ = session.Close()
		return nil, ErrClosed
	}
	c.session = session
	c.mu.Unlock()
	return session, nil
}

// HandleSignal consumes a message addressed to this call's room.
func (c *Call) HandleSignal(ctx context.Context, msg models.SignalMessage) error {
	switch msg.Type {
	case models.SignalTypeReady:
		return c.handleReady(ctx)
	case models.SignalTypeOffer:
		return c.handleOffer(ctx, msg)
	case models.SignalTypeAnswer:
		return c.handleAnswer(ctx, msg)
	case models.SignalTypeCandidate:
		return c.handleRemoteCandidate(msg)
	case models.SignalTypeRTCError, models.SignalTypeError:
		c.handleServerError(msg)
		return nil
	}
	return nil
}

func (c *Call) handleReady(ctx context.Context) error {
	c.mu.Lock()
	if c.phase.terminal() {
		c.mu.Unlock()
		return nil
	}
	c.neg.peerReady = true
	// The peer may have joined before our own ready could reach it; answer
	// its first ready with ours so both sides learn of each other.
	echo := !c.neg.readyEchoed && rank[c.phase] >= rank[PhaseReady]
	if echo {
		c.neg.readyEchoed = true
	}
	c.mu.Unlock()

	if echo {
		if err := c.sendReady(ctx); err != nil {
			return err
		}
	}
	return c.maybeOffer(ctx)
}

func (c *Call) handleOffer(ctx context.Context, msg models.SignalMessage) error {
	var offer models.SessionDescription
	if err := json.Unmarshal(msg.Offer, &offer); err != nil {
		c.log.Warn("Discarding malformed offer", "error", err)
		return nil
	}

	c.mu.Lock()
	switch {
	case c.phase.terminal():
		c.mu.Unlock()
		return nil
	case c.role == models.RoleCaller:
		c.mu.Unlock()
		c.log.Warn("Discarding offer received as caller")
		return nil
	case c.neg.offerReceived:
		c.mu.Unlock()
		c.log.Debug("Discarding duplicate offer")
		return nil
	}
	c.neg.offerReceived = true
	c.mu.Unlock()

	if err := c.ensureMedia(ctx); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.answer(ctx, offer); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		f := newFailure(CategoryNegotiation, ErrNegotiation, err)
		c.fail(f)
		return f
	}
	c.advance(PhaseAnswered)
	c.armTimer()
	return nil
}

// answer applies the offer and sends the answer. Must hold opMu.
func (c *Call) answer(ctx context.Context, offer models.SessionDescription) error {
	session, err := c.ensureSession()
	if err != nil {
		return err
	}
	if err := c.applyRemote(ctx, session, offer); err != nil {
		return err
	}
	answer, err := session.CreateAnswer(ctx)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.send(ctx, models.SignalMessage{Type: models.SignalTypeAnswer, Answer: raw})
}

func (c *Call) handleAnswer(ctx context.Context, msg models.SignalMessage) error {
	var answer models.SessionDescription
	if err := json.Unmarshal(msg.Answer, &answer); err != nil {
		c.log.Warn("Discarding malformed answer", "error", err)
		return nil
	}

	c.mu.Lock()
	if c.phase.terminal() || c.role != models.RoleCaller || !c.neg.offerSent || c.neg.answerReceived {
		c.mu.Unlock()
		c.log.Debug("Discarding unexpected answer")
		return nil
	}
	c.neg.answerReceived = true
	c.mu.Unlock()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return ErrClosed
	}

	if err := c.applyRemote(ctx, session, answer); err != nil {
		f := newFailure(CategoryNegotiation, ErrNegotiation, err)
		c.fail(f)
		return f
	}
	c.advance(PhaseAnswered)
	return nil
}

// applyRemote sets the remote description and drains queued candidates in
// arrival order. Must hold opMu.
func (c *Call) applyRemote(ctx context.Context, session PeerSession, desc models.SessionDescription) error {
	if err := session.SetRemoteDescription(ctx, desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	c.mu.Lock()
	c.neg.remoteSet = true
	queued := c.neg.queued
	c.neg.queued = nil
	c.mu.Unlock()

	for _, cand := range queued {
		if err := session.AddICECandidate(cand); err != nil {
			c.log.Warn("Failed to add queued ICE candidate", "error", err)
		}
	}
	return nil
}

func (c *Call) handleRemoteCandidate(msg models.SignalMessage) error {
	var cand models.ICECandidate
	if err := json.Unmarshal(msg.Candidate, &cand); err != nil {
		c.log.Warn("Discarding malformed ICE candidate", "error", err)
		return nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.phase.terminal() {
		c.mu.Unlock()
		return nil
	}
	if !c.neg.remoteSet || c.session == nil {
		c.neg.queued = append(c.neg.queued, cand)
		c.mu.Unlock()
		return nil
	}
	session := c.session
	c.mu.Unlock()

	if err := session.AddICECandidate(cand); err != nil {
		c.log.Warn("Failed to add ICE candidate", "error", err)
	}
	return nil
}

func (c *Call) handleServerError(msg models.SignalMessage) {
	f := failureFromServer(msg)
	if f.Category == CategoryUnreachable {
		// Expected while the peer has not joined yet. Only an undelivered
		// offer releases the latch; a late reply to an earlier ready or
		// candidate must not disturb an offer the peer already has.
		if msg.RejectedType == models.SignalTypeOffer {
			c.resetOffer()
		}
		if c.cfg.OnNotice != nil {
			c.cfg.OnNotice(f)
		}
		return
	}
	c.fail(f)
}

func (c *Call) onLocalCandidate(cand models.ICECandidate) {
	if c.Done() {
		return
	}
	raw, err := json.Marshal(cand)
	if err != nil {
		return
	}
	if err := c.send(context.Background(), models.SignalMessage{Type: models.SignalTypeCandidate, Candidate: raw}); err != nil {
		c.log.Warn("Failed to send ICE candidate", "error", err)
	}
}

func (c *Call) onTransportState(state TransportState) {
	switch state {
	case TransportConnected:
		c.mu.Lock()
		moved := c.advanceLocked(PhaseConnected)
		c.stopTimerLocked()
		c.mu.Unlock()
		if moved {
			c.notify(PhaseConnected, nil)
		}
	case TransportFailed, TransportDisconnected:
		c.fail(newFailure(CategoryTransport, ErrTransportFailure, fmt.Errorf("peer connection %s", state)))
	}
}

func (c *Call) armTimer() {
	if c.cfg.NegotiationTimeout <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase.terminal() || c.phase == PhaseConnected || c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.cfg.NegotiationTimeout, func() {
		c.fail(newFailure(CategoryTimeout, ErrNegotiationTimeout, nil))
	})
}

func (c *Call) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Call) send(ctx context.Context, msg models.SignalMessage) error {
	msg.ConnectionID = c.cfg.RoomID
	msg.TargetUserID = c.cfg.PeerID
	return c.cfg.Signaler.Send(ctx, msg)
}

// fail moves the call to failed and releases its resources. The first
// failure wins.
func (c *Call) fail(f *Failure) {
	c.mu.Lock()
	if c.phase.terminal() {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseFailed
	c.failure = f
	media, session := c.releaseLocked()
	c.mu.Unlock()

	c.log.Warn("Call failed", "category", f.Category, "error", f.Err)
	release(media, session)
	c.notify(PhaseFailed, f)
}

// Teardown stops local media, closes the peer session and clears every latch.
// It is a no-op on a closed call.
func (c *Call) Teardown() {
	c.mu.Lock()
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseClosed
	media, session := c.releaseLocked()
	c.mu.Unlock()

	release(media, session)
	c.notify(PhaseClosed, nil)
}

func (c *Call) releaseLocked() (LocalMedia, PeerSession) {
	media, session := c.media, c.session
	c.media, c.session = nil, nil
	c.neg = negotiation{}
	c.stopTimerLocked()
	return media, session
}

func release(media LocalMedia, session PeerSession) {
	if media != nil {
		media.Stop()
	}
	if session != nil {
		_ = session.Close()
	}
}
