package call

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPionSession_OfferAnswer(t *testing.T) {
	factory, err := NewPionFactory(nil, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()

	newSide := func() (PeerSession, LocalMedia) {
		s, err := factory.NewSession(SessionEvents{})
		require.NoError(t, err)
		m, err := SilenceSource{}.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, s.AddMedia(m))
		t.Cleanup(func() {
			m.Stop()
			_ = s.Close()
		})
		return s, m
	}

	caller, _ := newSide()
	callee, _ := newSide()

	offer, err := caller.CreateOffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "offer", offer.Type)
	assert.Contains(t, offer.SDP, "opus/48000/2")

	require.NoError(t, callee.SetRemoteDescription(ctx, offer))
	answer, err := callee.CreateAnswer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Type)

	require.NoError(t, caller.SetRemoteDescription(ctx, answer))
}

func TestPionSession_RejectsForeignMedia(t *testing.T) {
	factory, err := NewPionFactory(nil, discardLogger())
	require.NoError(t, err)
	s, err := factory.NewSession(SessionEvents{})
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.AddMedia(&fakeMedia{}))
}

func TestTransportStateMapping(t *testing.T) {
	assert.Equal(t, TransportConnected, transportState(webrtc.PeerConnectionStateConnected))
	assert.Equal(t, TransportFailed, transportState(webrtc.PeerConnectionStateFailed))
	assert.Equal(t, TransportDisconnected, transportState(webrtc.PeerConnectionStateDisconnected))
	assert.Equal(t, TransportNew, transportState(webrtc.PeerConnectionStateNew))
	assert.Equal(t, "failed", TransportFailed.String())
}
