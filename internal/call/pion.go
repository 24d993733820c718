package call

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mossy-p/voice-signaling/internal/models"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is one encoded 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameDuration = 20 * time.Millisecond

// TrackMedia is LocalMedia backed by a pion local track.
type TrackMedia interface {
	LocalMedia
	Track() webrtc.TrackLocal
}

// PionFactory creates pion peer connections with Opus audio and the
// configured STUN servers.
type PionFactory struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer
	logger     *slog.Logger
}

func NewPionFactory(stunServers []string, logger *slog.Logger) (*PionFactory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus: %w", err)
	}

	var servers []webrtc.ICEServer
	if len(stunServers) > 0 {
		servers = []webrtc.ICEServer{{URLs: stunServers}}
	}

	return &PionFactory{
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine)),
		iceServers: servers,
		logger:     logger,
	}, nil
}

func (f *PionFactory) NewSession(events SessionEvents) (PeerSession, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{ICEServers: f.iceServers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if candidate == nil || events.OnCandidate == nil {
			return
		}
		c := candidate.ToJSON()
		events.OnCandidate(models.ICECandidate{
			Candidate:        c.Candidate,
			SDPMid:           c.SDPMid,
			SDPMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if events.OnState != nil {
			events.OnState(transportState(state))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f.logger.Info("Receiving remote audio", "track_id", track.ID(), "codec", track.Codec().MimeType)
		// Playback is outside this package; drain so the receiver keeps flowing
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	})

	return &pionSession{pc: pc}, nil
}

func transportState(s webrtc.PeerConnectionState) TransportState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return TransportConnecting
	case webrtc.PeerConnectionStateConnected:
		return TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return TransportFailed
	case webrtc.PeerConnectionStateClosed:
		return TransportClosed
	default:
		return TransportNew
	}
}

type pionSession struct {
	pc *webrtc.PeerConnection
}

func (s *pionSession) AddMedia(m LocalMedia) error {
	tm, ok := m.(TrackMedia)
	if !ok {
		return errors.New("media has no pion track")
	}
	sender, err := s.pc.AddTrack(tm.Track())
	if err != nil {
		return err
	}

	// Read and discard RTCP packets
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (s *pionSession) CreateOffer(_ context.Context) (models.SessionDescription, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return models.SessionDescription{}, err
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return models.SessionDescription{}, err
	}
	return models.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (s *pionSession) CreateAnswer(_ context.Context) (models.SessionDescription, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return models.SessionDescription{}, err
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return models.SessionDescription{}, err
	}
	return models.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (s *pionSession) SetRemoteDescription(_ context.Context, desc models.SessionDescription) error {
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (s *pionSession) AddICECandidate(c models.ICECandidate) error {
	return s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func (s *pionSession) Close() error {
	return s.pc.Close()
}

// SilenceSource stands in for a microphone: it produces an Opus track that
// carries silence. Real capture plugs in through MediaSource.
type SilenceSource struct{}

func (SilenceSource) Acquire(_ context.Context) (LocalMedia, error) {
	id := uuid.New().String()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio-"+id,
		"voice-"+id,
	)
	if err != nil {
		return nil, err
	}

	m := &silenceMedia{track: track, stop: make(chan struct{})}
	go m.pump()
	return m, nil
}

type silenceMedia struct {
	track    *webrtc.TrackLocalStaticSample
	stop     chan struct{}
	stopOnce sync.Once
}

func (m *silenceMedia) Track() webrtc.TrackLocal {
	return m.track
}

func (m *silenceMedia) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *silenceMedia) pump() {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.track.WriteSample(media.Sample{Data: opusSilence, Duration: frameDuration}); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				return
			}
		}
	}
}
