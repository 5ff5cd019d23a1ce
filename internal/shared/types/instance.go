package types

import "time"

// Phase represents the run phase of an instance
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLaunching Phase = "launching"
	PhaseRunning   Phase = "running"
)

// Instance is a game installation as reported by the backend
type Instance struct {
	Name       string     `json:"name"`
	Version    string     `json:"version"`
	Loader     string     `json:"loader,omitempty"`
	Running    bool       `json:"running"`
	LastPlayed *time.Time `json:"last_played,omitempty"`
}

// InstanceRunState is the controller-owned view of an instance's phase
type InstanceRunState struct {
	Name  string `json:"name"`
	Phase Phase  `json:"phase"`
}

// CreateInstanceRequest carries the parameters for create_instance
type CreateInstanceRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Loader  string `json:"loader,omitempty"`
}
