package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mossy-p/voice-signaling/internal/call"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Signaling server base URL")
	token := flag.String("token", os.Getenv("SESSION_TOKEN"), "Session credential (required)")
	cookie := flag.String("cookie", "session", "Session cookie name")
	room := flag.String("room", "", "Connection ID to call over")
	answer := flag.Bool("answer", false, "Wait for incoming calls instead of placing one")
	timeout := flag.Duration("timeout", 45*time.Second, "Negotiation timeout (0 disables)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *token == "" || (*room == "" && !*answer) {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, options{
		server:  strings.TrimRight(*server, "/"),
		token:   *token,
		cookie:  *cookie,
		room:    *room,
		answer:  *answer,
		timeout: *timeout,
	}, logger)
	if err != nil {
		var f *call.Failure
		if errors.As(err, &f) {
			fmt.Fprintln(os.Stderr, f.UserMessage())
		}
		logger.Error("Call ended", "error", err)
		os.Exit(1)
	}
}

type options struct {
	server  string
	token   string
	cookie  string
	room    string
	answer  bool
	timeout time.Duration
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	var stun []string
	var peer string
	if opts.room != "" {
		info, err := call.LookupRoom(ctx, opts.server, opts.cookie, opts.token, opts.room)
		if err != nil {
			return err
		}
		logger.Info("Room resolved", "room_id", info.RoomID, "peer", info.PeerUserID, "role", info.Role)
		stun, peer = info.ICEServers, info.PeerUserID
	}

	factory, err := call.NewPionFactory(stun, logger)
	if err != nil {
		return err
	}

	ended := make(chan *call.Failure, 1)
	agent, err := call.Dial(ctx, call.AgentConfig{
		URL:                "ws" + strings.TrimPrefix(opts.server, "http") + "/ws",
		CookieName:         opts.cookie,
		Credential:         opts.token,
		Media:              call.SilenceSource{},
		Sessions:           factory,
		NegotiationTimeout: opts.timeout,
		Logger:             logger,
		AutoAnswer:         opts.answer,
		OnState: func(c *call.Call, p call.Phase, f *call.Failure) {
			logger.Info("Call state", "room_id", c.RoomID(), "phase", p)
			if p == call.PhaseFailed {
				select {
				case ended <- f:
				default:
				}
			}
		},
		OnNotice: func(c *call.Call, f *call.Failure) {
			logger.Info(f.UserMessage(), "room_id", c.RoomID())
		},
	})
	if err != nil {
		return err
	}
	defer agent.Close()

	runErr := make(chan error, 1)
	go func() { runErr <- agent.Run(ctx) }()

	if peer != "" {
		c, err := agent.Call(opts.room, peer)
		if err != nil {
			return err
		}
		if err := c.Start(ctx); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("Hanging up")
		return nil
	case f := <-ended:
		return f
	case err := <-runErr:
		return err
	}
}
