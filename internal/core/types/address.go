package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address identifies a buyer, a round, a vault or an asset contract.
type Address = common.Address

// AddressLength is the size of an address in bytes.
const AddressLength = common.AddressLength

// ZeroAddress is never a valid participant. As an asset it denotes the
// native currency.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAddress, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// BytesToAddress reads the trailing 20 bytes of b.
func BytesToAddress(b []byte) Address {
	return common.BytesToAddress(b)
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// DeriveAddress returns the address owned by parent at the given nonce.
// Rounds are derived from the registry, vaults from the authority.
func DeriveAddress(parent Address, nonce uint64) Address {
	return crypto.CreateAddress(parent, nonce)
}
