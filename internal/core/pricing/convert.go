package pricing

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/LeJamon/goPresale/internal/core/types"
)

// StableToUSD values a stable asset at one dollar per whole unit.
func StableToUSD(amount *types.Amount, decimals uint8) (types.USD, error) {
	return scale(amount, nil, int(decimals)-types.USDDecimals)
}

// NativeToUSD values a native amount at price.
func NativeToUSD(amount *types.Amount, decimals uint8, price Price) (types.USD, error) {
	if price.Answer == nil || price.Answer.IsZero() {
		return 0, fmt.Errorf("%w: zero answer", ErrPriceUnavailable)
	}
	return scale(amount, price.Answer, int(decimals)+int(price.Decimals)-types.USDDecimals)
}

// scale computes amount * mul / 10^shift, truncating, where a negative shift
// multiplies instead.
func scale(amount, mul *uint256.Int, shift int) (types.USD, error) {
	v := new(uint256.Int).Set(amount)
	if mul != nil {
		if _, overflow := v.MulOverflow(v, mul); overflow {
			return 0, fmt.Errorf("usd value overflow")
		}
	}
	switch {
	case shift > 0:
		v.Div(v, types.Pow10(uint8(shift)))
	case shift < 0:
		if _, overflow := v.MulOverflow(v, types.Pow10(uint8(-shift))); overflow {
			return 0, fmt.Errorf("usd value overflow")
		}
	}
	if !v.IsUint64() || !types.USD(v.Uint64()).Storable() {
		return 0, fmt.Errorf("usd value %s exceeds range", v.Dec())
	}
	return types.USD(v.Uint64()), nil
}

// ToUSD values amount of asset, reading the feed only for the native asset.
func (r *Resolver) ToUSD(ctx context.Context, oracle string, asset types.Asset, amount *types.Amount) (types.USD, error) {
	switch asset.Kind {
	case types.AssetStable:
		return StableToUSD(amount, asset.Decimals)
	case types.AssetNative:
		price, err := r.Latest(ctx, oracle)
		if err != nil {
			return 0, err
		}
		return NativeToUSD(amount, asset.Decimals, price)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Symbol)
	}
}
