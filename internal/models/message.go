package models

import "encoding/json"

// SignalType represents the type of a message on the signaling socket
type SignalType string

const (
	SignalTypePing      SignalType = "ping"
	SignalTypePong      SignalType = "pong"
	SignalTypeReady     SignalType = "voice_channel_ready"
	SignalTypeOffer     SignalType = "webrtc_offer"
	SignalTypeAnswer    SignalType = "webrtc_answer"
	SignalTypeCandidate SignalType = "webrtc_ice_candidate"

	SignalTypeWelcome     SignalType = "welcome"
	SignalTypeAuthSuccess SignalType = "auth_success"
	SignalTypeAuthFailed  SignalType = "auth_failed"
	SignalTypeError       SignalType = "error"
	SignalTypeRTCError    SignalType = "webrtc_error"
	SignalTypeBroadcast   SignalType = "broadcast"
)

// IsSignaling reports whether t is relayed peer-to-peer through the
// authorization gate.
func (t SignalType) IsSignaling() bool {
	switch t {
	case SignalTypeReady, SignalTypeOffer, SignalTypeAnswer, SignalTypeCandidate:
		return true
	}
	return false
}

// ErrorCode classifies error and webrtc_error replies so clients can tell a
// policy rejection from an offline peer.
type ErrorCode string

const (
	CodeAuthenticationRequired ErrorCode = "authentication_required"
	CodeBadRequest             ErrorCode = "bad_request"
	CodeAuthorizationDenied    ErrorCode = "authorization_denied"
	CodePeerUnreachable        ErrorCode = "peer_unreachable"
	CodeUnknownType            ErrorCode = "unknown_type"
	CodeInternal               ErrorCode = "internal_error"
)

// SignalMessage is the JSON envelope exchanged over the signaling socket.
// Session descriptions and candidates are kept raw so the server forwards
// them verbatim.
type SignalMessage struct {
	Type         SignalType      `json:"type"`
	ConnectionID string          `json:"connectionId,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	FromUserID   string          `json:"fromUserId,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	Code         ErrorCode       `json:"code,omitempty"`
	RejectedType SignalType      `json:"rejectedType,omitempty"`
	Message      string          `json:"message,omitempty"`
	Event        string          `json:"event,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Forwarded returns the copy delivered to the peer: annotated with the
// sender and stripped of the target.
func (m SignalMessage) Forwarded(from string) SignalMessage {
	out := m
	out.FromUserID = from
	out.TargetUserID = ""
	out.UserID = ""
	out.Code = ""
	out.RejectedType = ""
	out.Message = ""
	return out
}

// ErrorMessage builds an error reply to a message of type kind. Signaling
// failures use webrtc_error, everything else uses error. The reply names kind
// so a client can tell which of its messages was refused.
func ErrorMessage(kind SignalType, code ErrorCode, connectionID, message string) SignalMessage {
	t := SignalTypeError
	if kind.IsSignaling() {
		t = SignalTypeRTCError
	}
	return SignalMessage{
		Type:         t,
		ConnectionID: connectionID,
		Code:         code,
		RejectedType: kind,
		Message:      message,
	}
}

// SessionDescription mirrors the browser RTCSessionDescriptionInit shape.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate mirrors the browser RTCIceCandidateInit shape.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}
