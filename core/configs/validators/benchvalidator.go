package validators

import (
	"flow-latency-benchmark/core/configs"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Validates all fields of the benchmark configuration
// Determines the validity and returns a boolean whether it is
// valid or invalid.
func ValidateBenchConfig(c *configs.BenchConfig) (bool, error) {
	// Empty name is an error
	if len(c.Name) == 0 {
		return false, errors.New("missing benchmark name")
	}

	// Description can be omitted, but we will warn.
	if len(c.Description) == 0 {
		zap.L().Warn("Missing description in configuration file.")
	}

	if ok, err := ValidateNetwork(c.Network); !ok {
		return false, err
	}

	// Runners cannot be empty.
	if len(c.Runners) == 0 {
		return false, errors.New("no runners provided")
	}

	seen := make(map[string]bool, len(c.Runners))
	for _, r := range c.Runners {
		if seen[r] {
			return false, errors.Newf("runner %s listed twice", r)
		}
		seen[r] = true
	}

	names := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if len(p.Name) == 0 {
			return false, errors.New("provider without a name")
		}
		if names[p.Name] {
			return false, errors.Newf("provider %s listed twice", p.Name)
		}
		names[p.Name] = true
	}

	// Check that there are no negative durations.
	if c.Delay < 0 {
		return false, errors.Newf("delay %v cannot be negative", c.Delay)
	}
	if c.Archive.Retention < 0 {
		return false, errors.Newf("archive retention %v cannot be negative", c.Archive.Retention)
	}
	if c.Timing.Ceiling < 0 || c.Timing.PollInterval < 0 {
		return false, errors.New("timing values cannot be negative")
	}

	return true, nil
}

// ValidateNetwork checks that a network name is one of the known networks.
func ValidateNetwork(network string) (bool, error) {
	switch network {
	case configs.NetworkMainnet, configs.NetworkTestnet, configs.NetworkEmulator:
		return true, nil
	default:
		return false, errors.Newf("unknown network '%s'", network)
	}
}
