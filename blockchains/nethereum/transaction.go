package nethereum

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/params"
)

// ParseEther converts a decimal amount of the native token into wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, 18)
}

// ParseUnits converts a decimal amount into its integer representation with
// the given number of decimals. Digits beyond the decimals are rejected.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	var whole, frac string
	var value *big.Int
	var ok bool

	amount = strings.TrimSpace(amount)
	whole, frac, _ = strings.Cut(amount, ".")

	if whole == "" {
		whole = "0"
	}
	if strings.HasPrefix(whole, "-") {
		return nil, errors.Newf("negative amount %q", amount)
	}
	if len(frac) > decimals {
		return nil, errors.Newf("amount %q has more than %d decimals", amount, decimals)
	}

	frac += strings.Repeat("0", decimals-len(frac))

	value, ok = new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, errors.Newf("invalid amount %q", amount)
	}

	return value, nil
}

// FormatEther renders an amount of wei in the native token, for the logs.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "<nil>"
	}

	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(params.Ether))

	return f.Text('f', 6)
}
