package redis

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mossy-p/voice-signaling/config"
	"github.com/mossy-p/voice-signaling/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	client, err := Connect(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer client.Close()

	b := NewBroadcaster(client, "feed", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan models.SignalMessage, 1)
	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, func(m models.SignalMessage) { got <- m })
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("feed")["feed"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(ctx, models.SignalMessage{Type: models.SignalTypeBroadcast, Event: "profile_updated"}))

	select {
	case m := <-got:
		assert.Equal(t, models.SignalTypeBroadcast, m.Type)
		assert.Equal(t, "profile_updated", m.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: "1"})
	assert.Error(t, err)
}
