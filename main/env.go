package main

import (
	"strings"

	"flow-latency-benchmark/core/configs"
	"flow-latency-benchmark/headless"
	"flow-latency-benchmark/scenarios"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. Unless bound otherwise, a key is read from the
// environment variable of the same name in upper case with dashes replaced
// by underscores, e.g. flow-private-key from FLOW_PRIVATE_KEY.
const (
	keyNetwork       = "network"
	keyPrivateKey    = "private-key"
	keyRecipient     = "recipient"
	keyFlowAddress   = "flow-address"
	keyFlowKey       = "flow-private-key"
	keyFlowKeyIndex  = "flow-key-index"
	keyFlowRecipient = "flow-recipient"
	keyPassword      = "browser-password"
	keyExtensions    = "extensions-dir"
	keyUserData      = "user-data-dir"
	keyHeadful       = "headful"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	launch := headless.DefaultLaunchOptions()
	v.SetDefault(keyPassword, headless.DefaultPassword)
	v.SetDefault(keyExtensions, launch.ExtensionsDir)
	v.SetDefault(keyUserData, launch.UserDataDir)
	v.SetDefault(keyFlowKeyIndex, 0)

	_ = v.BindEnv(keyPassword, "CHROME_METAMASK_PASSWORD")

	return v
}

// bindFlags binds each flag of the set to the configuration key of the same
// name, flags taking precedence over the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		f := flags.Lookup(name)
		if f == nil {
			return errors.Newf("no flag %s", name)
		}
		if err := v.BindPFlag(name, f); err != nil {
			return errors.Wrapf(err, "binding flag %s", name)
		}
	}
	return nil
}

// environmentFlags are the flags overriding the environment. They are bound
// when their command runs as each command has its own set.
var environmentFlags = []string{keyNetwork, keyRecipient, keyFlowRecipient, keyExtensions, keyUserData, keyHeadful}

func addEnvironmentFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.String(keyNetwork, "", "network to run on (mainnet, testnet, emulator), overrides the configuration")
	flags.String(keyRecipient, "", "EVM recipient of the transfers")
	flags.String(keyFlowRecipient, "", "recipient of the Cadence transfers")
	flags.String(keyExtensions, v.GetString(keyExtensions), "directory of the unpacked wallet extensions")
	flags.String(keyUserData, v.GetString(keyUserData), "persistent browser profile")
	flags.Bool(keyHeadful, false, "show the browser window")
}

// networkKey is the key of a network specific setting, read from
// <NETWORK>_<SETTING>.
func networkKey(network, key string) string {
	return strings.ToLower(network) + "-" + strings.ToLower(key)
}

// firstString returns the first key with a non-empty value.
func firstString(v *viper.Viper, keys ...string) string {
	for _, k := range keys {
		if s := v.GetString(k); s != "" {
			return s
		}
	}
	return ""
}

// resolveNetwork returns the network given on the command line or in the
// environment, the configured one otherwise.
func resolveNetwork(v *viper.Viper, configured string) (string, error) {
	network := v.GetString(keyNetwork)
	if network == "" {
		network = configured
	}
	if network == "" {
		network = configs.NetworkTestnet
	}

	switch network {
	case configs.NetworkMainnet, configs.NetworkTestnet, configs.NetworkEmulator:
		return network, nil
	default:
		return "", errors.Newf("unsupported network %q", network)
	}
}

// newEnvironment gathers the endpoints and credentials a scenario needs to
// run against a provider.
func newEnvironment(v *viper.Viper, chain *configs.ChainConfig, bench *configs.BenchConfig, provider configs.ProviderConfig) (*scenarios.Environment, error) {
	network, err := resolveNetwork(v, bench.Network)
	if err != nil {
		return nil, err
	}

	netCfg, ok := chain.Network(network)
	if !ok {
		return nil, errors.Newf("network %s is not described by the chain configuration", network)
	}

	endpoint := netCfg.EVM
	if provider.Key != "" {
		key := networkKey(network, provider.Key)
		endpoint = v.GetString(key)
		if endpoint == "" {
			return nil, errors.Newf("provider %s has no endpoint, set %s",
				provider.Name, strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
		}
	}

	privateKey := v.GetString(keyPrivateKey)
	if privateKey == "" && len(chain.Keys) > 0 {
		privateKey = chain.Keys[0].Hex()
	}

	env := &scenarios.Environment{
		Network:       network,
		EVMEndpoint:   endpoint,
		AccessHost:    netCfg.Access,
		Token:         netCfg.Token,
		PrivateKey:    privateKey,
		Recipient:     v.GetString(keyRecipient),
		FlowAddress:   firstString(v, networkKey(network, keyFlowAddress), keyFlowAddress),
		FlowKey:       firstString(v, networkKey(network, keyFlowKey), keyFlowKey),
		FlowKeyIndex:  v.GetUint32(keyFlowKeyIndex),
		FlowRecipient: v.GetString(keyFlowRecipient),
		Password:      v.GetString(keyPassword),
		Launch: headless.LaunchOptions{
			ExtensionsDir: v.GetString(keyExtensions),
			UserDataDir:   v.GetString(keyUserData),
			Headless:      !v.GetBool(keyHeadful),
		},
		Ceiling:      bench.Timing.Ceiling,
		PollInterval: bench.Timing.PollInterval,
	}

	return env, nil
}
