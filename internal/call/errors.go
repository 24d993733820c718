package call

import (
	"errors"
	"fmt"

	"github.com/mossy-p/voice-signaling/internal/models"
)

var (
	ErrMediaAcquisition       = errors.New("could not access microphone")
	ErrTransportFailure       = errors.New("peer connection lost")
	ErrAuthorizationDenied    = errors.New("not allowed to call this user")
	ErrAuthenticationRequired = errors.New("not signed in")
	ErrPeerUnreachable        = errors.New("user is not online")
	ErrNegotiationTimeout     = errors.New("call setup timed out")
	ErrNegotiation            = errors.New("call setup failed")
	ErrSignaling              = errors.New("signaling connection failed")
	ErrCallExists             = errors.New("a call is already active for this connection")
	ErrCallStarted            = errors.New("call already started")
	ErrClosed                 = errors.New("call closed")
)

// Category groups failures into the messages a user is shown.
type Category string

const (
	CategoryMedia          Category = "media"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryUnreachable    Category = "unreachable"
	CategoryTransport      Category = "transport"
	CategoryNegotiation    Category = "negotiation"
	CategoryTimeout        Category = "timeout"
	CategorySignaling      Category = "signaling"
)

// Failure is the single user-visible outcome of anything that goes wrong in
// a call.
type Failure struct {
	Category Category
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Category, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// UserMessage is the text shown to the user for this failure.
func (f *Failure) UserMessage() string {
	switch f.Category {
	case CategoryMedia:
		return "Microphone access was denied or no microphone is available."
	case CategoryAuthentication:
		return "Your session has expired. Please sign in again."
	case CategoryAuthorization:
		return "You can only call people you are connected with."
	case CategoryUnreachable:
		return "This person is not online right now."
	case CategoryTransport:
		return "The call was disconnected."
	case CategoryTimeout:
		return "The other person did not respond."
	default:
		return "The call could not be set up."
	}
}

func newFailure(category Category, sentinel, cause error) *Failure {
	err := sentinel
	if cause != nil && !errors.Is(cause, sentinel) {
		err = fmt.Errorf("%w: %v", sentinel, cause)
	}
	return &Failure{Category: category, Err: err}
}

// failureFromServer maps an error reply from the signaling server.
func failureFromServer(msg models.SignalMessage) *Failure {
	cause := errors.New(msg.Message)
	switch msg.Code {
	case models.CodeAuthenticationRequired:
		return newFailure(CategoryAuthentication, ErrAuthenticationRequired, cause)
	case models.CodeAuthorizationDenied:
		return newFailure(CategoryAuthorization, ErrAuthorizationDenied, cause)
	case models.CodePeerUnreachable:
		return newFailure(CategoryUnreachable, ErrPeerUnreachable, cause)
	default:
		return newFailure(CategorySignaling, ErrSignaling, cause)
	}
}
