package launch

import (
	"fmt"

	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
)

// Policy is the launch admission rule
type Policy string

const (
	// PolicySingleFlight allows one launch at a time across all instances.
	// Any number of instances may be running.
	PolicySingleFlight Policy = config.PolicySingleFlight
	// PolicyPerInstance only refuses a launch of an instance that is already launching
	PolicyPerInstance Policy = config.PolicyPerInstance
)

// ParsePolicy converts a configuration value into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySingleFlight, PolicyPerInstance:
		return Policy(s), nil
	case "":
		return PolicySingleFlight, nil
	default:
		return "", fmt.Errorf("unknown launch policy %q", s)
	}
}
