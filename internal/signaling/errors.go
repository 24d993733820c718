package signaling

import (
	"errors"

	"github.com/mossy-p/voice-signaling/internal/models"
)

var (
	// ErrAuthenticationMissing: the socket has no resolved identity.
	ErrAuthenticationMissing = errors.New("authentication required")
	// ErrBadRequest: the message is malformed or lacks routing fields.
	ErrBadRequest = errors.New("bad request")
	// ErrAuthorizationDenied: the room, participant or status check failed.
	ErrAuthorizationDenied = errors.New("not authorized for this connection")
	// ErrPeerUnreachable: authorized, but the target has no live socket.
	ErrPeerUnreachable = errors.New("target user not connected")
	// ErrLookup: the relationship store could not be queried.
	ErrLookup = errors.New("relationship lookup failed")
)

// DeniedError carries the reason a message failed the authorization gate.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return ErrAuthorizationDenied.Error() + ": " + e.Reason
}

func (e *DeniedError) Unwrap() error {
	return ErrAuthorizationDenied
}

func denied(reason string) error {
	return &DeniedError{Reason: reason}
}

// codeFor maps a relay error onto the wire error code.
func codeFor(err error) models.ErrorCode {
	switch {
	case errors.Is(err, ErrAuthenticationMissing):
		return models.CodeAuthenticationRequired
	case errors.Is(err, ErrBadRequest):
		return models.CodeBadRequest
	case errors.Is(err, ErrAuthorizationDenied):
		return models.CodeAuthorizationDenied
	case errors.Is(err, ErrPeerUnreachable):
		return models.CodePeerUnreachable
	default:
		return models.CodeInternal
	}
}
