package types

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// TokenDecimals is the precision of the sale token.
const TokenDecimals = 18

// Amount is a raw token quantity in the smallest unit of its asset.
type Amount = uint256.Int

// NewAmount returns an amount holding v base units.
func NewAmount(v uint64) *Amount {
	return uint256.NewInt(v)
}

// Units returns v * 10^decimals, e.g. Units(2000, 18) for 2000 whole tokens.
func Units(v uint64, decimals uint8) *Amount {
	out := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return out.Mul(out, uint256.NewInt(v))
}

// Pow10 returns 10^n.
func Pow10(n uint8) *Amount {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// ParseUnits converts a human decimal ("1.5") into base units.
func ParseUnits(s string, decimals uint8) (*Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	if d.Exponent() < -int32(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	v, overflow := uint256.FromBig(d.Shift(int32(decimals)).BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows", s)
	}
	return v, nil
}

// FormatUnits renders base units as a human decimal.
func FormatUnits(a *Amount, decimals uint8) string {
	if a == nil {
		return "0"
	}
	return decimal.NewFromBigInt(a.ToBig(), -int32(decimals)).String()
}

// ParseAmount reads a base-unit integer as stored in the database.
func ParseAmount(s string) (*Amount, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base-unit amount %q: %w", s, err)
	}
	return v, nil
}

// AmountFromBig converts a non-negative big.Int.
func AmountFromBig(b *big.Int) (*Amount, error) {
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", b)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("amount %s overflows 256 bits", b)
	}
	return v, nil
}
