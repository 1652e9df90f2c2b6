package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is the connected wallet. Alias is a cached projection of Address
// and is never used for on-chain lookups.
type Identity struct {
	Address common.Address
	Alias   string
}

// NewIdentity parses a hex address into an Identity.
func NewIdentity(address string) (Identity, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Address: addr}, nil
}

// ParseAddress validates and parses a hex address. Mixed, upper and lower case
// spellings of the same address parse to the same value.
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(address), nil
}

// Connected reports whether the identity holds a wallet address.
func (i Identity) Connected() bool {
	return i.Address != (common.Address{})
}

// Equal compares identities by address only.
func (i Identity) Equal(other Identity) bool {
	return i.Address == other.Address
}

// Is reports whether addr belongs to this identity.
func (i Identity) Is(addr common.Address) bool {
	return i.Connected() && i.Address == addr
}

// Owner returns the lowercase hex form of the address.
func (i Identity) Owner() string {
	return strings.ToLower(i.Address.Hex())
}

// String prefers the alias for display.
func (i Identity) String() string {
	if !i.Connected() {
		return "<disconnected>"
	}
	if i.Alias != "" {
		return i.Alias
	}
	return i.Address.Hex()
}
