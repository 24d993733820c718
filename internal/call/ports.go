package call

import (
	"context"

	"github.com/mossy-p/voice-signaling/internal/models"
)

// LocalMedia is captured local audio. Stop releases the device.
type LocalMedia interface {
	Stop()
}

// MediaSource acquires local audio; failure usually means permission denied.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// TransportState is the peer session's connection state.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "new"
	}
}

// SessionEvents are delivered by a PeerSession from its own goroutines.
type SessionEvents struct {
	OnCandidate func(models.ICECandidate)
	OnState     func(TransportState)
}

// PeerSession is one peer-to-peer media session. CreateOffer and
// CreateAnswer also apply the result as the local description.
type PeerSession interface {
	AddMedia(m LocalMedia) error
	CreateOffer(ctx context.Context) (models.SessionDescription, error)
	CreateAnswer(ctx context.Context) (models.SessionDescription, error)
	SetRemoteDescription(ctx context.Context, desc models.SessionDescription) error
	AddICECandidate(c models.ICECandidate) error
	Close() error
}

type SessionFactory interface {
	NewSession(events SessionEvents) (PeerSession, error)
}

// Signaler sends a message over the signaling socket.
type Signaler interface {
	Send(ctx context.Context, msg models.SignalMessage) error
}
