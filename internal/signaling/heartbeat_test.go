package signaling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeat_EvictsSilentConnections(t *testing.T) {
	reg := NewRegistry()
	start := time.Unix(1000, 0)
	now := start
	reg.now = func() time.Time { return now }
	hb := NewHeartbeat(reg, 30*time.Second, 40*time.Second, discardLogger())

	silent := &fakeTransport{}
	lively := &fakeTransport{}
	silentRec := reg.Add(silent, "alice")
	livelyRec := reg.Add(lively, "bob")

	// First sweep: both within timeout, both probed.
	now = start.Add(30 * time.Second)
	assert.Equal(t, 0, hb.Sweep(now))
	assert.Equal(t, 1, silent.pings)
	assert.Equal(t, 1, lively.pings)

	// Only bob acknowledges.
	reg.Touch(livelyRec.ID)

	now = start.Add(60 * time.Second)
	assert.Equal(t, 1, hb.Sweep(now))

	_, ok := reg.Get(silentRec.ID)
	assert.False(t, ok, "silent connection must be removed")
	assert.True(t, silent.isClosed(), "silent transport must be terminated")

	_, ok = reg.Get(livelyRec.ID)
	assert.True(t, ok)
	assert.False(t, lively.isClosed())
	assert.Equal(t, 2, lively.pings)
}

func TestHeartbeat_EvictsOnPingFailure(t *testing.T) {
	reg := NewRegistry()
	hb := NewHeartbeat(reg, time.Second, time.Minute, discardLogger())

	broken := &fakeTransport{pingErr: errors.New("write: broken pipe")}
	rec := reg.Add(broken, "alice")

	assert.Equal(t, 1, hb.Sweep(time.Now()))
	_, ok := reg.Get(rec.ID)
	assert.False(t, ok)
	assert.True(t, broken.isClosed())
}

func TestHeartbeat_RunStopsOnCancel(t *testing.T) {
	reg := NewRegistry()
	hb := NewHeartbeat(reg, 5*time.Millisecond, 10*time.Millisecond, discardLogger())
	tr := &fakeTransport{}
	reg.Add(tr, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop")
	}
}
