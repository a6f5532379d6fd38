package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb/sqldb"
)

var (
	admin    = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	round    = types.MustParseAddress("0x00000000000000000000000000000000000000b2")
	referrer = types.MustParseAddress("0x0000000000000000000000000000000000000011")
	referee  = types.MustParseAddress("0x0000000000000000000000000000000000000022")
)

func TestBonus(t *testing.T) {
	tests := []struct {
		base *types.Amount
		want *types.Amount
	}{
		{types.Units(4000, 18), types.Units(200, 18)},
		{types.Units(2000, 18), types.Units(100, 18)},
		{types.NewAmount(19), types.NewAmount(0)},
		{types.NewAmount(39), types.NewAmount(1)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bonus(tt.base, DefaultBonusBps), tt.base.Dec())
	}
}

func TestCredits(t *testing.T) {
	ctx := context.Background()
	store, err := sqldb.OpenMemory(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	now := time.Unix(1000, 0)
	require.NoError(t, access.Bootstrap(ctx, store, access.LedgerReferral, admin, now))
	adminCap, err := access.Require(ctx, store, access.LedgerReferral, access.CapAdmin, admin)
	require.NoError(t, err)
	_, err = access.Authorize(ctx, store, adminCap, round, access.CapRound, now)
	require.NoError(t, err)
	grant, err := access.Require(ctx, store, access.LedgerReferral, access.CapRound, round)
	require.NoError(t, err)

	ledger := New(nil)
	bonus := types.Units(200, 18)
	require.NoError(t, ledger.CreditReferee(ctx, store, grant, referee, bonus))
	require.NoError(t, ledger.CreditReferrer(ctx, store, grant, referrer, bonus))
	require.NoError(t, ledger.CreditReferrer(ctx, store, grant, referrer, bonus))

	info, err := ledger.Info(ctx, store, referrer)
	require.NoError(t, err)
	assert.Equal(t, types.Units(400, 18), info.EarnedAsReferrer)
	assert.True(t, info.EarnedAsReferee.IsZero())
	assert.Equal(t, uint64(2), info.ReferralCount)

	info, err = ledger.Info(ctx, store, referee)
	require.NoError(t, err)
	assert.Equal(t, bonus, info.EarnedAsReferee)

	assert.True(t, errors.Is(ledger.CreditReferee(ctx, store, grant, types.ZeroAddress, bonus), ErrInvalidCredit))
	assert.True(t, errors.Is(ledger.CreditReferrer(ctx, store, grant, referrer, types.NewAmount(0)), ErrInvalidCredit))
	assert.True(t, errors.Is(ledger.CreditReferrer(ctx, store, adminCap, referrer, bonus), access.ErrUnauthorized))
}
