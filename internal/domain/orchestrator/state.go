package orchestrator

import (
	"github.com/GriffinCanCode/launcher/internal/domain/presence"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

// State is the read-only snapshot the view renders from
type State struct {
	Tasks     []types.Task             `json:"tasks"`
	Instances []types.Instance         `json:"instances"`
	RunStates []types.InstanceRunState `json:"run_states"`
	Launching string                   `json:"launching,omitempty"`
	Running   []string                 `json:"running"`

	Authenticated     bool            `json:"authenticated"`
	ActiveAccount     *types.Account  `json:"active_account,omitempty"`
	Accounts          []types.Account `json:"accounts"`
	SigningIn         bool            `json:"signing_in"`
	AccountPickerOpen bool            `json:"account_picker_open"`

	Social presence.View `json:"social"`
	Alert  *Alert        `json:"alert,omitempty"`
}

// Listener receives a fresh State after every change
type Listener func(State)
