package configs

// ChainConfig contains the information about the networks the scenarios
// reach.
type ChainConfig struct {
	Name     string                   `yaml:"name"`     // Name of the chain (will be used in config print)
	Networks map[string]NetworkConfig `yaml:"networks"` // Endpoints per network name
	Keys     []ChainKey               `yaml:"keys"`     // Key information
}

// NetworkConfig holds the default endpoints of one network.
type NetworkConfig struct {
	EVM     string `yaml:"evm"`     // EVM JSON-RPC endpoint
	Access  string `yaml:"access"`  // Cadence access node (host:port)
	Token   string `yaml:"token"`   // ERC20 token used by the ERC20 scenarios
	ChainID int64  `yaml:"chainid"` // Expected EVM chain id, 0 to skip the check
}

// Network returns the configuration of a network. The boolean is false when
// the network is not described.
func (c *ChainConfig) Network(name string) (NetworkConfig, bool) {
	n, ok := c.Networks[name]
	return n, ok
}
