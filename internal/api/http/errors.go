package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/launcher/internal/backend"
	"github.com/GriffinCanCode/launcher/internal/domain/account"
	"github.com/GriffinCanCode/launcher/internal/domain/launch"
	"github.com/GriffinCanCode/launcher/internal/domain/orchestrator"
	"github.com/GriffinCanCode/launcher/internal/domain/presence"
	"github.com/GriffinCanCode/launcher/internal/domain/task"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/resilience"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	Alert    bool   `json:"alert,omitempty"`
}

var conflicts = []error{
	launch.ErrLaunchInFlight,
	launch.ErrAlreadyLaunching,
	launch.ErrAlreadyRunning,
	launch.ErrNotRunning,
	task.ErrTaskExists,
	presence.ErrRequestInFlight,
	presence.ErrNothingStaged,
	account.ErrSignInInFlight,
}

// statusFor maps an orchestrator error to an HTTP status and response body
func statusFor(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var validation *presence.ValidationError
	var reqErr *presence.RequestError
	var alertErr *orchestrator.AlertError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, resp
	case errors.Is(err, orchestrator.ErrEmptyName), errors.Is(err, orchestrator.ErrInvalidName),
		errors.Is(err, presence.ErrEmptyRequestID):
		return http.StatusBadRequest, resp
	case errors.Is(err, launch.ErrNoActiveAccount), errors.Is(err, presence.ErrNotAuthenticated):
		return http.StatusUnauthorized, resp
	case errors.Is(err, task.ErrTaskNotFound):
		return http.StatusNotFound, resp
	case errors.As(err, &reqErr):
		resp.Error = reqErr.Message
		resp.Category = string(reqErr.Category)
		return http.StatusBadGateway, resp
	case errors.As(err, &alertErr):
		resp.Alert = true
		return http.StatusBadGateway, resp
	case errors.Is(err, backend.ErrTransport),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable, resp
	case backend.IsCommandError(err):
		resp.Error = backend.Message(err)
		return http.StatusBadGateway, resp
	}

	for _, conflict := range conflicts {
		if errors.Is(err, conflict) {
			return http.StatusConflict, resp
		}
	}
	return http.StatusInternalServerError, resp
}

func respondError(c *gin.Context, err error) {
	status, resp := statusFor(err)
	c.AbortWithStatusJSON(status, resp)
}
