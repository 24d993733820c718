package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-signaling/config"
	"github.com/mossy-p/voice-signaling/internal/handlers"
	"github.com/mossy-p/voice-signaling/internal/models"
	"github.com/mossy-p/voice-signaling/internal/redis"
	"github.com/mossy-p/voice-signaling/internal/relationship"
	"github.com/mossy-p/voice-signaling/internal/session"
	"github.com/mossy-p/voice-signaling/internal/signaling"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := newLogger(cfg.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Error("Signaling server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Redis
	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("Redis connection established")

	// Relationship store shared with the CRUD API
	store, err := relationship.OpenSQL(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	resolver := relationship.NewResolver(store)

	sessions := session.NewStore(redisClient, cfg.Session.Secret, cfg.Session.TTL)
	registry := signaling.NewRegistry()
	hub := signaling.NewHub(registry, resolver, logger)
	defer hub.Shutdown()

	heartbeat := signaling.NewHeartbeat(registry, cfg.Signaling.HeartbeatInterval, cfg.Signaling.HeartbeatTimeout, logger)
	go heartbeat.Run(ctx)

	broadcaster := redis.NewBroadcaster(redisClient, cfg.Redis.BroadcastChannel, logger)
	go func() {
		err := broadcaster.Subscribe(ctx, func(msg models.SignalMessage) {
			hub.Broadcast(msg)
		})
		if err != nil {
			logger.Error("Broadcast subscription ended", "error", err)
		}
	}()

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.Deps{
		Config:    cfg,
		Hub:       hub,
		Sessions:  sessions,
		Validator: sessions,
		Resolver:  resolver,
		Publisher: broadcaster,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting WebRTC signaling server", "port", cfg.Port,
			"heartbeat_interval", cfg.Signaling.HeartbeatInterval, "heartbeat_timeout", cfg.Signaling.HeartbeatTimeout)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(environment string) *slog.Logger {
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
