package types

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// USD is a dollar value with six decimals (micro-dollars).
type USD uint64

const (
	USDDecimals     = 6
	USDUnit     USD = 1_000_000

	// MaxUSD is the largest value the settlement store can hold in its
	// signed 64-bit columns.
	MaxUSD USD = math.MaxInt64
)

// ParseUSD reads a human value such as "100" or "0.05".
func ParseUSD(s string) (USD, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid usd value %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative usd value %q", s)
	}
	if d.Exponent() < -USDDecimals {
		return 0, fmt.Errorf("usd value %q has more than %d decimals", s, USDDecimals)
	}
	micro := d.Shift(USDDecimals).BigInt()
	if !micro.IsUint64() {
		return 0, fmt.Errorf("usd value %q overflows", s)
	}
	return USD(micro.Uint64()), nil
}

// MustParseUSD is ParseUSD for constants and tests.
func MustParseUSD(s string) USD {
	u, err := ParseUSD(s)
	if err != nil {
		panic(err)
	}
	return u
}

func (u USD) Micro() uint64 {
	return uint64(u)
}

func (u USD) IsZero() bool {
	return u == 0
}

// Storable reports whether u fits the store's signed columns.
func (u USD) Storable() bool {
	return u <= MaxUSD
}

// Add returns u+other and false if the sum overflows.
func (u USD) Add(other USD) (USD, bool) {
	sum := u + other
	return sum, sum >= u
}

// Decimal returns the value in whole dollars.
func (u USD) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(u)), -USDDecimals)
}

func (u USD) String() string {
	return u.Decimal().String()
}

// MarshalJSON writes the exact dollar value as a string, "0.05".
func (u USD) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.Decimal().String() + `"`), nil
}

func (u *USD) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := ParseUSD(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
