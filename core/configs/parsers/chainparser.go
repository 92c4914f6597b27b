package parsers

import (
	"os"

	"flow-latency-benchmark/core/configs"
	"flow-latency-benchmark/core/configs/validators"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Default endpoints of the Flow networks, used when no chain configuration
// file is given.
var defaultNetworks = map[string]configs.NetworkConfig{
	configs.NetworkMainnet: {
		EVM:     "https://mainnet.evm.nodes.onflow.org",
		Access:  "access.mainnet.nodes.onflow.org:9000",
		Token:   "0x2aabea2058b5ac2d339b163c6ab6f2b6d53aabed",
		ChainID: 747,
	},
	configs.NetworkTestnet: {
		EVM:     "https://testnet.evm.nodes.onflow.org",
		Access:  "access.devnet.nodes.onflow.org:9000",
		Token:   "0x5e65b6b04fba51d95409712978cb91e99d93ae73",
		ChainID: 545,
	},
	configs.NetworkEmulator: {
		EVM:    "http://localhost:8545",
		Access: "127.0.0.1:3569",
	},
}

// Parse the chain configuration file.
// This function both (a) reads the file from disk, and (b) calls the YAML
// to be parsed. An empty path returns the default Flow networks.
func ParseChainConfig(filePath string) (*configs.ChainConfig, error) {
	if filePath == "" {
		return DefaultChainConfig(), nil
	}

	// Get the bytes of the file
	configFileBytes, err := os.ReadFile(filePath)

	if err != nil {
		return nil, errors.Wrapf(err, "reading chain config %s", filePath)
	}

	return parseChainYaml(configFileBytes)
}

// DefaultChainConfig describes the public Flow networks.
func DefaultChainConfig() *configs.ChainConfig {
	networks := make(map[string]configs.NetworkConfig, len(defaultNetworks))
	for k, v := range defaultNetworks {
		networks[k] = v
	}
	return &configs.ChainConfig{Name: "flow", Networks: networks}
}

// Parse the chain configuration in the YAML files.
// Networks missing from the file keep their default endpoints.
func parseChainYaml(fileContents []byte) (*configs.ChainConfig, error) {
	var chainConfig configs.ChainConfig
	err := yaml.Unmarshal(fileContents, &chainConfig)

	if err != nil {
		return nil, errors.Wrap(err, "parsing chain config")
	}

	if chainConfig.Networks == nil {
		chainConfig.Networks = make(map[string]configs.NetworkConfig)
	}

	for name, network := range chainConfig.Networks {
		if ok, err := validators.ValidateNetwork(name); !ok {
			return nil, err
		}
		chainConfig.Networks[name] = mergeNetwork(network, defaultNetworks[name])
	}

	for name, network := range defaultNetworks {
		if _, ok := chainConfig.Networks[name]; !ok {
			chainConfig.Networks[name] = network
		}
	}

	zap.L().Debug("chain config parsed",
		zap.String("name", chainConfig.Name),
		zap.Int("networks", len(chainConfig.Networks)),
		zap.Int("keys", len(chainConfig.Keys)))

	return &chainConfig, nil
}

func mergeNetwork(n, defaults configs.NetworkConfig) configs.NetworkConfig {
	if n.EVM == "" {
		n.EVM = defaults.EVM
	}
	if n.Access == "" {
		n.Access = defaults.Access
	}
	if n.Token == "" {
		n.Token = defaults.Token
	}
	if n.ChainID == 0 {
		n.ChainID = defaults.ChainID
	}
	return n
}
