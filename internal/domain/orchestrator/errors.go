package orchestrator

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/launcher/internal/backend"
)

var (
	ErrEmptyName   = errors.New("instance name must not be empty")
	ErrInvalidName = errors.New("invalid instance request")
)

// AlertError is a critical failure that must block the user until
// acknowledged, such as a failed duplication or creation.
type AlertError struct {
	Operation string
	Target    string
	Err       error
}

func (e *AlertError) Error() string {
	return fmt.Sprintf("%s of %q failed: %s", e.Operation, e.Target, backend.Message(e.Err))
}

func (e *AlertError) Unwrap() error { return e.Err }

// Alert is the view form of an AlertError
type Alert struct {
	Operation string `json:"operation"`
	Target    string `json:"target"`
	Message   string `json:"message"`
}

func alertFrom(err *AlertError) *Alert {
	return &Alert{
		Operation: err.Operation,
		Target:    err.Target,
		Message:   backend.Message(err.Err),
	}
}
