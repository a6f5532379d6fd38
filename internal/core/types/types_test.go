package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUSD(t *testing.T) {
	tests := []struct {
		in      string
		want    USD
		wantErr bool
	}{
		{"100", 100 * USDUnit, false},
		{"0.05", 50_000, false},
		{"500", 500_000_000, false},
		{"0.0000001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUSD(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUSDString(t *testing.T) {
	assert.Equal(t, "0.05", USD(50_000).String())
	assert.Equal(t, "500", USD(500_000_000).String())
	assert.Equal(t, "0.000001", USD(1).String())
}

func TestUSDStorable(t *testing.T) {
	assert.True(t, MaxUSD.Storable())
	assert.False(t, (MaxUSD + 1).Storable())
	assert.False(t, USD(^uint64(0)).Storable())
}

func TestUSDAddOverflow(t *testing.T) {
	_, ok := USD(^uint64(0)).Add(1)
	assert.False(t, ok)
	sum, ok := USD(1).Add(2)
	assert.True(t, ok)
	assert.Equal(t, USD(3), sum)
}

func TestUnits(t *testing.T) {
	a, err := ParseUnits("2000", TokenDecimals)
	require.NoError(t, err)
	assert.Equal(t, Units(2000, TokenDecimals), a)
	assert.Equal(t, "2000", FormatUnits(a, TokenDecimals))

	half, err := ParseUnits("0.5", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), half.Uint64())

	_, err = ParseUnits("0.0000001", 6)
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("2000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, Units(2000, 18), a)

	zero, err := ParseAmount("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseAmount("12x")
	assert.Error(t, err)
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	parent := MustParseAddress("0x00000000000000000000000000000000000000aa")
	a := DeriveAddress(parent, 0)
	b := DeriveAddress(parent, 1)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, DeriveAddress(parent, 0))
	assert.NotEqual(t, ZeroAddress, a)
}

func TestAssetTable(t *testing.T) {
	usdt := Asset{Symbol: "USDT", Address: MustParseAddress("0x00000000000000000000000000000000000000b1"), Decimals: 6, Kind: AssetStable}
	table, err := NewAssetTable(NativeAsset, usdt)
	require.NoError(t, err)

	got, ok := table.Lookup("usdt")
	require.True(t, ok)
	assert.Equal(t, usdt, got)

	got, ok = table.Lookup(usdt.Address.Hex())
	require.True(t, ok)
	assert.Equal(t, "USDT", got.Symbol)

	_, ok = table.Lookup("DAI")
	assert.False(t, ok)

	_, err = NewAssetTable(Asset{Symbol: "BAD", Kind: AssetStable, Decimals: 6})
	assert.Error(t, err)
	_, err = NewAssetTable(usdt, usdt)
	assert.Error(t, err)
}

func TestUSDJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Price USD `json:"price"`
	}{MustParseUSD("0.033")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"0.033"}`, string(out))

	var back struct {
		Price USD `json:"price"`
	}
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, MustParseUSD("0.033"), back.Price)

	require.Error(t, json.Unmarshal([]byte(`{"price":"-1"}`), &back))
}
