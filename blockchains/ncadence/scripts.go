package ncadence

import (
	_ "embed"
	"strings"

	"flow-latency-benchmark/core/configs"

	"github.com/cockroachdb/errors"
)

//go:embed cadence/transfer_flow.cdc
var transferFlowScript string

// Core contract addresses per network.
var contractAddresses = map[string]map[string]string{
	configs.NetworkMainnet: {
		"FungibleToken": "0xf233dcee88fe0abe",
		"FlowToken":     "0x1654653399040a61",
		"EVM":           "0xe467b9dd11fa00df",
	},
	configs.NetworkTestnet: {
		"FungibleToken": "0x9a0766d93b6608b7",
		"FlowToken":     "0x7e60df042a9c0868",
		"EVM":           "0x8c5303eaa26202d6",
	},
	configs.NetworkEmulator: {
		"FungibleToken": "0xee82856bf20e2aa6",
		"FlowToken":     "0x0ae53cb6e3f42a79",
		"EVM":           "0xf8d6e0586b0a20c7",
	},
}

// resolveImports rewrites the string imports of a script into address
// imports for the network.
func resolveImports(script, network string) ([]byte, error) {
	addresses, ok := contractAddresses[network]
	if !ok {
		return nil, errors.Newf("no contract addresses for network %s", network)
	}

	var b strings.Builder
	for _, line := range strings.SplitAfter(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, `import "`) {
			b.WriteString(line)
			continue
		}

		name := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
		address, ok := addresses[name]
		if !ok {
			return nil, errors.Newf("unknown contract %s on %s", name, network)
		}

		b.WriteString("import " + name + " from " + address + "\n")
	}

	return []byte(b.String()), nil
}
