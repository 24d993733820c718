package signaling

import (
	"context"
	"log/slog"
	"time"
)

// Heartbeat evicts sockets that stop answering liveness probes. It is the
// only thing that reclaims sockets which die without a close frame.
type Heartbeat struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHeartbeat(registry *Registry, interval, timeout time.Duration, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		registry: registry,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run sweeps on every interval until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Sweep(now)
		}
	}
}

// Sweep terminates every socket silent for longer than the timeout and
// probes the rest. It returns the number of evicted sockets.
func (h *Heartbeat) Sweep(now time.Time) int {
	evicted := 0
	for _, l := range h.registry.Snapshot() {
		rec := l.Record
		if now.Sub(l.Last) > h.timeout {
			h.evict(rec, "liveness timeout")
			evicted++
			continue
		}
		if err := rec.Transport.Ping(); err != nil {
			h.evict(rec, "ping failed")
			evicted++
		}
	}
	if evicted > 0 {
		h.logger.Info("Heartbeat evicted stale connections", "evicted", evicted, "remaining", h.registry.Len())
	}
	return evicted
}

func (h *Heartbeat) evict(rec *Record, reason string) {
	if _, ok := h.registry.Remove(rec.ID); !ok {
		return
	}
	_ = rec.Transport.Close()
	h.logger.Debug("Evicted connection", "conn_id", rec.ID, "user_id", rec.Identity, "reason", reason)
}
