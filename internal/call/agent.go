package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mossy-p/voice-signaling/internal/models"
)

const writeWait = 10 * time.Second

// AgentConfig configures an Agent.
type AgentConfig struct {
	URL        string
	CookieName string
	Credential string

	Media              MediaSource
	Sessions           SessionFactory
	NegotiationTimeout time.Duration
	Logger             *slog.Logger

	// AutoAnswer creates and starts a call when an offer or ready signal
	// arrives for a room with no call yet.
	AutoAnswer bool

	OnState     func(c *Call, phase Phase, failure *Failure)
	OnNotice    func(c *Call, failure *Failure)
	OnBroadcast func(msg models.SignalMessage)
}

// Agent owns one signaling socket and the calls running over it. At most
// one live call exists per room.
type Agent struct {
	cfg      AgentConfig
	conn     *websocket.Conn
	identity string
	logger   *slog.Logger

	writeMu sync.Mutex

	mu    sync.Mutex
	calls map[string]*Call
}

// Dial connects to the signaling server and waits for its authentication
// verdict. An unauthenticated socket is useless for calls, so auth_failed
// closes it and returns ErrAuthenticationRequired.
func Dial(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	if cfg.Credential != "" {
		header.Set("Cookie", (&http.Cookie{Name: cfg.CookieName, Value: cfg.Credential}).String())
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	identity, err := awaitAuth(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("Signaling connected", "user_id", identity)
	return &Agent{
		cfg:      cfg,
		conn:     conn,
		identity: identity,
		logger:   logger.With("user_id", identity),
		calls:    make(map[string]*Call),
	}, nil
}

func awaitAuth(ctx context.Context, conn *websocket.Conn) (string, error) {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		var msg models.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return "", fmt.Errorf("read auth: %w", err)
		}
		switch msg.Type {
		case models.SignalTypeAuthSuccess:
			return msg.UserID, nil
		case models.SignalTypeAuthFailed:
			return "", fmt.Errorf("%w: %s", ErrAuthenticationRequired, msg.Message)
		}
	}
}

// Identity is the user ID the server resolved for this socket.
func (a *Agent) Identity() string {
	return a.identity
}

// Send implements Signaler.
func (a *Agent) Send(ctx context.Context, msg models.SignalMessage) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = a.conn.SetWriteDeadline(deadline)
	return a.conn.WriteJSON(msg)
}

// Call creates the call for roomID with peerID. It fails with ErrCallExists
// while a previous call for the room is still live.
func (a *Agent) Call(roomID, peerID string) (*Call, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.calls[roomID]; ok && !existing.Done() {
		return nil, ErrCallExists
	}

	var c *Call
	c = New(Config{
		RoomID:             roomID,
		LocalID:            a.identity,
		PeerID:             peerID,
		Media:              a.cfg.Media,
		Sessions:           a.cfg.Sessions,
		Signaler:           a,
		Logger:             a.logger,
		NegotiationTimeout: a.cfg.NegotiationTimeout,
		OnState: func(p Phase, f *Failure) {
			if a.cfg.OnState != nil {
				a.cfg.OnState(c, p, f)
			}
		},
		OnNotice: func(f *Failure) {
			if a.cfg.OnNotice != nil {
				a.cfg.OnNotice(c, f)
			}
		},
	})
	a.calls[roomID] = c
	return c, nil
}

// Lookup returns the call registered for roomID.
func (a *Agent) Lookup(roomID string) (*Call, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.calls[roomID]
	return c, ok
}

// Hangup tears down the call for roomID.
func (a *Agent) Hangup(roomID string) {
	a.mu.Lock()
	c, ok := a.calls[roomID]
	delete(a.calls, roomID)
	a.mu.Unlock()
	if ok {
		c.Teardown()
	}
}

// Run reads the socket until it closes or ctx is cancelled, dispatching
// each message in arrival order.
func (a *Agent) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = a.conn.Close()
	}()

	for {
		var msg models.SignalMessage
		if err := a.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrSignaling, err)
		}
		a.dispatch(ctx, msg)
	}
}

func (a *Agent) dispatch(ctx context.Context, msg models.SignalMessage) {
	switch {
	case msg.Type == models.SignalTypePing:
		if err := a.Send(ctx, models.SignalMessage{Type: models.SignalTypePong}); err != nil {
			a.logger.Warn("Failed to answer ping", "error", err)
		}
	case msg.Type == models.SignalTypeBroadcast:
		if a.cfg.OnBroadcast != nil {
			a.cfg.OnBroadcast(msg)
		}
	case msg.Type.IsSignaling(), msg.Type == models.SignalTypeRTCError, msg.Type == models.SignalTypeError:
		a.route(ctx, msg)
	}
}

func (a *Agent) route(ctx context.Context, msg models.SignalMessage) {
	if msg.ConnectionID == "" {
		a.logger.Warn("Server error without connection", "code", msg.Code, "message", msg.Message)
		return
	}

	c, ok := a.Lookup(msg.ConnectionID)
	if ok && c.Done() {
		ok = false
	}
	if ok && msg.FromUserID != "" && msg.FromUserID != c.PeerID() {
		a.logger.Warn("Discarding signal from unexpected sender", "room_id", msg.ConnectionID, "from", msg.FromUserID)
		return
	}

	if !ok {
		incoming := msg.Type == models.SignalTypeOffer || msg.Type == models.SignalTypeReady
		if !a.cfg.AutoAnswer || !incoming || msg.FromUserID == "" {
			a.logger.Debug("No call for signal", "room_id", msg.ConnectionID, "type", msg.Type)
			return
		}
		var err error
		c, err = a.Call(msg.ConnectionID, msg.FromUserID)
		if err != nil {
			return
		}
		a.logger.Info("Incoming call", "room_id", msg.ConnectionID, "from", msg.FromUserID)
		if msg.Type == models.SignalTypeReady {
			// Record the peer as ready first so Start's own ready doubles
			// as the reply and is not echoed again.
			a.handle(ctx, c, msg)
			a.start(ctx, c)
			return
		}
		a.start(ctx, c)
	}

	a.handle(ctx, c, msg)
}

func (a *Agent) start(ctx context.Context, c *Call) {
	if err := c.Start(ctx); err != nil {
		a.logger.Warn("Failed to start incoming call", "room_id", c.RoomID(), "error", err)
	}
}

func (a *Agent) handle(ctx context.Context, c *Call, msg models.SignalMessage) {
	if err := c.HandleSignal(ctx, msg); err != nil && !errors.Is(err, ErrClosed) {
		a.logger.Warn("Signal handling failed", "room_id", msg.ConnectionID, "type", msg.Type, "error", err)
	}
}

// Close tears down every call and closes the socket.
func (a *Agent) Close() error {
	a.mu.Lock()
	calls := a.calls
	a.calls = make(map[string]*Call)
	a.mu.Unlock()

	for _, c := range calls {
		c.Teardown()
	}

	a.writeMu.Lock()
	_ = a.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	a.writeMu.Unlock()
	return a.conn.Close()
}
