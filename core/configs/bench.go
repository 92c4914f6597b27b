package configs

import "time"

// Benchmark configuration structure, all the information about which
// scenarios run against which providers.
type BenchConfig struct {
	Name        string           `yaml:"name"`                  // Name of the benchmark
	Description string           `yaml:"description,omitempty"` // Description of what it is
	Network     string           `yaml:"network"`               // Network the scenarios run on (mainnet, testnet, emulator)
	Runners     []string         `yaml:"runners"`               // Scenarios to run, in order
	Providers   []ProviderConfig `yaml:"providers"`             // RPC providers, each runner runs once per provider
	Output      string           `yaml:"output"`                // Directory receiving the results
	Archive     ArchiveConfig    `yaml:"archive"`               // Rolling JSON archive of the results
	Delay       time.Duration    `yaml:"delay"`                 // Pause between two scenario runs
	Timing      TimingConfig     `yaml:"timing"`                // Wait parameters of the actions
	Metrics     MetricsConfig    `yaml:"metrics"`               // Prometheus export
}

// ProviderConfig names an RPC provider. The endpoint of the provider is read
// from the environment variable <NETWORK>_<Key>, an empty key selects the
// endpoints of the chain configuration.
type ProviderConfig struct {
	Name string `yaml:"name"` // Label used in the results
	Key  string `yaml:"key"`  // Environment key suffix, e.g. ALCHEMY_URL
}

// ArchiveConfig describes the rolling JSON archive.
type ArchiveConfig struct {
	Path      string        `yaml:"path"`      // Path of the archive file
	Flattened string        `yaml:"flattened"` // Path of the flattened export, empty to skip
	Retention time.Duration `yaml:"retention"` // Results older than this are dropped
}

// TimingConfig overrides the wait parameters of the actions.
type TimingConfig struct {
	Ceiling      time.Duration `yaml:"ceiling"`       // Maximum precondition and stabilization wait
	PollInterval time.Duration `yaml:"poll-interval"` // Pause between invocations of a stabilizing action
}

// MetricsConfig describes the prometheus export.
type MetricsConfig struct {
	Address  string `yaml:"address"`  // Serve /metrics on this address while running, empty to disable
	Textfile string `yaml:"textfile"` // Write the metrics to this file after the runs, empty to disable
}

// DefaultProvider is used when the configuration lists no provider.
var DefaultProvider = ProviderConfig{Name: "default"}
