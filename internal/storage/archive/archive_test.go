package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

func settlement(seq uint64) *relationaldb.SettlementRow {
	return &relationaldb.SettlementRow{
		ID:            fmt.Sprintf("settlement-%d", seq),
		RoundIndex:    0,
		Sequence:      seq,
		Buyer:         types.MustParseAddress("0x00000000000000000000000000000000000000b1"),
		PayAsset:      types.ZeroAddress,
		Amount:        types.NewAmount(1_000_000 * seq),
		USDValue:      types.MustParseUSD("50"),
		BaseTokens:    types.NewAmount(1000),
		BonusTokens:   types.NewAmount(0),
		ReferrerBonus: types.NewAmount(0),
		Timestamp:     1_700_000_000 + int64(seq),
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, w.Write(settlement(seq)))
	}
	assert.Equal(t, 3, w.Count())
	require.NoError(t, w.Close())

	rows, err := NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		want := settlement(uint64(i + 1))
		assert.Equal(t, want.ID, row.ID)
		assert.Equal(t, want.Sequence, row.Sequence)
		assert.Equal(t, want.Buyer, row.Buyer)
		assert.Equal(t, want.USDValue, row.USDValue)
		assert.Equal(t, want.Amount.Dec(), row.Amount.Dec())
		assert.Equal(t, want.Timestamp, row.Timestamp)
	}
}

func TestPlainRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlainWriter(&buf)
	require.NoError(t, w.Write(settlement(1)))
	require.NoError(t, w.Write(settlement(2)))
	require.NoError(t, w.Close())
	assert.Contains(t, buf.String(), `"usd_value":"50"`)

	rows, err := NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(2), rows[1].Sequence)
}

func TestFrameMagic(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	require.NoError(t, w.Write(settlement(1)))
	require.NoError(t, w.Close())
	assert.True(t, bytes.HasPrefix(buf.Bytes(), frameMagic))
}

func TestEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	require.NoError(t, w.Close())

	_, err := NewReader(&buf).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNilSettlement(t *testing.T) {
	w := NewWriter(io.Discard, 0)
	assert.Error(t, w.Write(nil))
	assert.Equal(t, 0, w.Count())
}

func TestCompresses(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	var raw int
	for seq := uint64(1); seq <= 200; seq++ {
		row := settlement(seq)
		require.NoError(t, w.Write(row))
		data, err := json.Marshal(row)
		require.NoError(t, err)
		raw += len(data) + 1
	}
	require.NoError(t, w.Close())
	assert.Less(t, buf.Len(), raw)
}
