package types

import (
	"fmt"
	"sort"
	"strings"
)

// AssetKind tells the pricing layer how to value an asset.
type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetStable AssetKind = "stable"
)

// Asset describes a currency accepted as payment.
type Asset struct {
	Symbol   string    `json:"symbol" mapstructure:"symbol"`
	Address  Address   `json:"address" mapstructure:"address"`
	Decimals uint8     `json:"decimals" mapstructure:"decimals"`
	Kind     AssetKind `json:"kind" mapstructure:"kind"`
}

// NativeAsset is the chain currency, identified by the zero address.
var NativeAsset = Asset{Symbol: "ETH", Address: ZeroAddress, Decimals: 18, Kind: AssetNative}

func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

func (a Asset) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("asset symbol is required")
	}
	switch a.Kind {
	case AssetNative:
		if a.Address != ZeroAddress {
			return fmt.Errorf("native asset %s must use the zero address", a.Symbol)
		}
	case AssetStable:
		if a.Address == ZeroAddress {
			return fmt.Errorf("stable asset %s needs a token address", a.Symbol)
		}
	default:
		return fmt.Errorf("asset %s: unknown kind %q", a.Symbol, a.Kind)
	}
	if a.Decimals > 36 {
		return fmt.Errorf("asset %s: decimals %d out of range", a.Symbol, a.Decimals)
	}
	return nil
}

// AssetTable resolves payment assets by address or symbol.
type AssetTable struct {
	byAddress map[Address]Asset
	bySymbol  map[string]Asset
}

func NewAssetTable(assets ...Asset) (*AssetTable, error) {
	t := &AssetTable{
		byAddress: make(map[Address]Asset, len(assets)),
		bySymbol:  make(map[string]Asset, len(assets)),
	}
	for _, a := range assets {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.byAddress[a.Address]; dup {
			return nil, fmt.Errorf("duplicate asset address %s", a.Address.Hex())
		}
		t.byAddress[a.Address] = a
		t.bySymbol[strings.ToUpper(a.Symbol)] = a
	}
	return t, nil
}

func (t *AssetTable) ByAddress(addr Address) (Asset, bool) {
	a, ok := t.byAddress[addr]
	return a, ok
}

// Lookup accepts either a symbol or a hex address.
func (t *AssetTable) Lookup(ref string) (Asset, bool) {
	if a, ok := t.bySymbol[strings.ToUpper(strings.TrimSpace(ref))]; ok {
		return a, true
	}
	addr, err := ParseAddress(ref)
	if err != nil {
		return Asset{}, false
	}
	return t.ByAddress(addr)
}

func (t *AssetTable) All() []Asset {
	out := make([]Asset, 0, len(t.byAddress))
	for _, a := range t.byAddress {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
