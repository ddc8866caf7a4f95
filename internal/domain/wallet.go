// Package domain contains entities without logic, just meta-data
// and the validation needed to construct them.
package domain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrBadWallet = errors.New("not a valid wallet address")

// Wallet is a normalized (lowercase hex) EVM address.
type Wallet string

// ParseWallet validates and normalizes a wallet address so every layer
// below HTTP can compare wallets with plain ==.
func ParseWallet(s string) (Wallet, error) {
	if !common.IsHexAddress(s) {
		return "", ErrBadWallet
	}
	return Wallet(strings.ToLower(common.HexToAddress(s).Hex())), nil
}

func (w Wallet) Address() common.Address {
	return common.HexToAddress(string(w))
}

func (w Wallet) String() string { return string(w) }
