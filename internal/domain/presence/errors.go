package presence

import (
	"errors"
	"strings"

	"github.com/GriffinCanCode/launcher/internal/backend"
)

var (
	ErrRequestInFlight  = errors.New("another friend request is being processed")
	ErrNothingStaged    = errors.New("no friend staged for removal")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrEmptyRequestID   = errors.New("friend request id must not be empty")
)

// Category is a user-facing class of friend request failure
type Category string

const (
	CategoryAlreadySent    Category = "already-sent"
	CategoryCheckRequests  Category = "check-your-requests"
	CategoryUserNotFound   Category = "user-not-found"
	CategoryAlreadyFriends Category = "already-friends"
	CategoryUnknown        Category = "unknown"
)

// ValidationError is an input rejected before reaching the backend
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

const (
	msgEmptyUsername = "Please enter a username"
	msgSelfRequest   = "You can't send a friend request to yourself"
)

// RequestError is a classified backend rejection of a friend request
type RequestError struct {
	Category Category
	Message  string
	Err      error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Err }

// classifier pairs a lowercase substring with its category and message.
// Order matters: "already sent you a friend request" contains "already sent".
var classifiers = []struct {
	needle   string
	category Category
	message  string
}{
	{"sent you a friend request", CategoryCheckRequests, "This user already sent you a friend request. Check your requests!"},
	{"already sent", CategoryAlreadySent, "Friend request already sent"},
	{"not found", CategoryUserNotFound, "User not found"},
	{"already friends", CategoryAlreadyFriends, "You are already friends with this user"},
}

// Classify maps a backend failure to a user-facing category. Unrecognized
// messages are passed through verbatim.
func Classify(err error) *RequestError {
	msg := backend.Message(err)
	lower := strings.ToLower(msg)
	for _, c := range classifiers {
		if strings.Contains(lower, c.needle) {
			return &RequestError{Category: c.category, Message: c.message, Err: err}
		}
	}
	return &RequestError{Category: CategoryUnknown, Message: msg, Err: err}
}
