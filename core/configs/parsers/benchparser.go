// Package parsers presents the parsing of configuration files, which will
// parse and generate the related information necessary for the use in the
// benchmark file
package parsers

import (
	"os"
	"path/filepath"
	"time"

	"flow-latency-benchmark/core"
	"flow-latency-benchmark/core/configs"
	"flow-latency-benchmark/core/configs/validators"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultOutput    = "outputs"
	defaultArchive   = "latency_results.json"
	defaultFlattened = "flattened_output.json"
	defaultRetention = 30 * 24 * time.Hour
	defaultDelay     = 2 * time.Second
)

// ParseBenchConfig parses the benchmark configuration file from YAML.
// Reads the filepath to see if we can extract the YAML.
func ParseBenchConfig(path string) (*configs.BenchConfig, error) {
	// Get the configuration information from the filepath
	configFileBytes, err := os.ReadFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "reading bench config %s", path)
	}

	return parseBenchYaml(configFileBytes)
}

// parseBenchYaml provides the full unmarshal of the YAML, fills the defaults
// and validates the result.
func parseBenchYaml(content []byte) (*configs.BenchConfig, error) {
	// Try to read the YAML.
	var benchConfig configs.BenchConfig

	err := yaml.Unmarshal(content, &benchConfig)

	if err != nil {
		return nil, errors.Wrap(err, "parsing bench config")
	}

	applyBenchDefaults(&benchConfig)

	// Check validity
	if ok, err := validators.ValidateBenchConfig(&benchConfig); !ok {
		return nil, err
	}

	return &benchConfig, nil
}

func applyBenchDefaults(c *configs.BenchConfig) {
	if c.Network == "" {
		c.Network = configs.NetworkTestnet
	}
	if len(c.Providers) == 0 {
		c.Providers = []configs.ProviderConfig{configs.DefaultProvider}
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.Output, defaultArchive)
	}
	if c.Archive.Flattened == "" {
		c.Archive.Flattened = filepath.Join(c.Output, defaultFlattened)
	}
	if c.Archive.Retention == 0 {
		c.Archive.Retention = defaultRetention
	}
	if c.Delay == 0 {
		c.Delay = defaultDelay
	}
	if c.Timing.Ceiling == 0 {
		c.Timing.Ceiling = core.DefaultCeiling
	}
	if c.Timing.PollInterval == 0 {
		c.Timing.PollInterval = core.DefaultPollInterval
	}
}
