package configs

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
)

// Networks a scenario can run on.
const (
	NetworkMainnet  = "mainnet"
	NetworkTestnet  = "testnet"
	NetworkEmulator = "emulator"
)

type ChainKey struct {
	PrivateKey []byte `yaml:"private"` // Private key information
	Address    string `yaml:"address"` // Address that it is from
}

// Naive check if the prefixed PrivateKey has "0x" leading.
func checkPrefix(keyHex string) bool {
	return len(keyHex) >= 2 && // Length must be 0x or more
		keyHex[0] == '0' && // Starts with 0
		(keyHex[1] == 'x' || keyHex[1] == 'X') // followed by an x or X
}

// TrimHexPrefix removes a leading 0x from a hex string.
func TrimHexPrefix(keyHex string) string {
	if checkPrefix(keyHex) {
		return keyHex[2:]
	}
	return keyHex
}

func (ck *ChainKey) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var c struct {
		PrivateKey string `yaml:"private"`
		Address    string `yaml:"address"`
	}
	err := unmarshal(&c)

	if err != nil {
		return err
	}

	if len(c.PrivateKey) == 0 {
		return errors.New("empty PrivateKey passed to unmarshal")
	}

	privateKeyBytes, err := hex.DecodeString(TrimHexPrefix(c.PrivateKey))
	// If we couldn't decode
	if err != nil {
		return errors.Wrap(err, "invalid private key")
	}

	(*ck).PrivateKey = privateKeyBytes
	(*ck).Address = c.Address

	return nil
}

// Hex returns the private key as a hex string without prefix.
func (ck *ChainKey) Hex() string {
	return hex.EncodeToString(ck.PrivateKey)
}
