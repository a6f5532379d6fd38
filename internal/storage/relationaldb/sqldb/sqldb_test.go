package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

var (
	alice = types.MustParseAddress("0x00000000000000000000000000000000000a11ce")
	bob   = types.MustParseAddress("0x0000000000000000000000000000000000000b0b")
	usdt  = types.MustParseAddress("0x00000000000000000000000000000000000000d7")
)

func openTestStore(t *testing.T) *RepositoryManager {
	t.Helper()
	rm, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { rm.Close(context.Background()) })
	return rm
}

func testRound(index uint64) *relationaldb.RoundRow {
	return &relationaldb.RoundRow{
		Index:           index,
		Address:         types.DeriveAddress(alice, index),
		Name:            "Private Sale",
		TokenPriceUSD:   50_000,
		HardCapUSD:      types.MustParseUSD("1000"),
		StartTime:       100,
		EndTime:         200,
		CliffDuration:   10,
		VestingDuration: 20,
		IsActive:        true,
		Oracle:          "static:3000",
		TotalTokensSold: types.NewAmount(0),
		CreatedAt:       50,
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", postgresDialect.rebind(q))
}

func TestSystemStateSavedOnce(t *testing.T) {
	rm := openTestStore(t)
	ctx := context.Background()

	_, err := rm.System().GetState(ctx)
	assert.True(t, errors.Is(err, relationaldb.ErrSystemNotFound))

	state := &relationaldb.SystemState{Authority: alice, Registry: bob, SaleToken: usdt, TokenDecimals: 18, InitializedAt: 7}
	require.NoError(t, rm.System().SaveState(ctx, state))

	got, err := rm.System().GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, got.Authority)
	assert.Equal(t, uint8(18), got.TokenDecimals)

	err = rm.System().SaveState(ctx, state)
	assert.True(t, errors.Is(err, relationaldb.ErrDuplicateEntry))
}

func TestRoundRoundTripAndCap(t *testing.T) {
	rm := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, rm.Rounds().Insert(ctx, testRound(0)))
	n, err := rm.Rounds().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	ok, err := rm.Rounds().AddRaised(ctx, 0, types.MustParseUSD("600"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rm.Rounds().AddRaised(ctx, 0, types.MustParseUSD("401"))
	require.NoError(t, err)
	assert.False(t, ok, "cap must hold")

	ok, err = rm.Rounds().AddRaised(ctx, 0, types.MustParseUSD("400"))
	require.NoError(t, err)
	assert.True(t, ok, "exactly the cap is allowed")

	require.NoError(t, rm.Rounds().SetPaused(ctx, 0, true))
	require.NoError(t, rm.Rounds().SetTokensSold(ctx, 0, types.Units(20000, 18)))

	got, err := rm.Rounds().Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("1000"), got.TotalRaisedUSD)
	assert.True(t, got.Paused)
	assert.True(t, got.IsActive)
	assert.Equal(t, types.Units(20000, 18), got.TotalTokensSold)

	_, err = rm.Rounds().Get(ctx, 9)
	assert.True(t, errors.Is(err, relationaldb.ErrRoundNotFound))
	assert.True(t, errors.Is(rm.Rounds().SetPaused(ctx, 9, true), relationaldb.ErrNotFound))

	seq, err := rm.Rounds().NextSettlementSeq(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	seq, err = rm.Rounds().NextSettlementSeq(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
}

func TestRateLimitRowDefaults(t *testing.T) {
	rm := openTestStore(t)
	ctx := context.Background()

	row, err := rm.RateLimits().Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, row.Address)
	assert.Zero(t, row.LastTxTime)

	row.LastTxTime = 10
	row.TxCountInWindow = 3
	row.DailySpentUSD = types.MustParseUSD("100")
	require.NoError(t, rm.RateLimits().Save(ctx, row))

	got, err := rm.RateLimits().Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, row, got)

	require.NoError(t, rm.RateLimits().Delete(ctx, alice))
	got, err = rm.RateLimits().Get(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, got.TxCountInWindow)

	_, err = rm.RateLimits().GetConfig(ctx)
	assert.True(t, errors.Is(err, relationaldb.ErrNotFound))
}

func TestUSDColumnRange(t *testing.T) {
	rm := openTestStore(t)
	ctx := context.Background()

	err := rm.RateLimits().SaveConfig(ctx, &relationaldb.RateLimitConfigRow{
		MinTimeBetweenTx: 30, MaxTxPerPeriod: 10, Period: 86400, MaxDailySpendUSD: types.MaxUSD + 1,
	})
	assert.True(t, relationaldb.IsDataError(err))

	require.NoError(t, rm.RateLimits().SaveConfig(ctx, &relationaldb.RateLimitConfigRow{
		MinTimeBetweenTx: 30, MaxTxPerPeriod: 10, Period: 86400, MaxDailySpendUSD: types.MaxUSD,
	}))
	cfg, err := rm.RateLimits().GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.MaxUSD, cfg.MaxDailySpendUSD)

	_, err = rm.db.ExecContext(ctx, "UPDATE rate_limit_config SET max_daily_spend_usd = -1 WHERE id = 1")
	require.NoError(t, err)
	_, err = rm.RateLimits().GetConfig(ctx)
	assert.True(t, relationaldb.IsDataError(err), "a negative column is corrupt data, not zero")
}

func TestCapabilitiesIdempotent(t *testing.T) {
	rm := openTestStore(t)
	ctx := context.Background()
	row := &relationaldb.CapabilityRow{Ledger: "vesting", Capability: "round", Holder: bob, GrantedAt: 1}

	added, err := rm.Capabilities().Grant(ctx, row)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = rm.Capabilities().Grant(ctx, row)
	require.NoError(t, err)
	assert.False(t, added)

	has, err := rm.Capabilities().Has(ctx, "vesting", "round", bob)
	require.NoError(t, err)
	assert.True(t, has)

	list, err := rm.Capabilities().ListByHolder(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	removed, err := rm.Capabilities().Revoke(ctx, "vesting", "round", bob)
	require.NoError(t, err)
	assert.True(t, removed)
	has, err = rm.Capabilities().Has(ctx, "vesting", "round", bob)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestWithTransactionRollsBack(t *testing.T) {
	rm := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := rm.WithTransaction(ctx, func(tc relationaldb.TransactionContext) error {
		if err := tc.Assets().SetBalance(ctx, usdt, alice, types.NewAmount(5)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	bal, err := rm.Assets().Balance(ctx, usdt, alice)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.NoError(t, rm.WithTransaction(ctx, func(tc relationaldb.TransactionContext) error {
		return tc.Assets().SetAllowance(ctx, usdt, alice, bob, types.NewAmount(9))
	}))
	allowance, err := rm.Assets().Allowance(ctx, usdt, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), allowance.Uint64())

	assert.Panics(t, func() {
		_ = rm.WithTransaction(ctx, func(tc relationaldb.TransactionContext) error {
			_ = tc.Custody().SetBalance(ctx, usdt, types.NewAmount(1))
			panic("boom")
		})
	})
	bal, err = rm.Custody().Balance(ctx, usdt)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestSettlementsAndPurchases(t *testing.T) {
	rm := openTestStore(t)
	ctx := context.Background()

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, rm.Settlements().Insert(ctx, &relationaldb.SettlementRow{
			ID:            string(rune('a' + seq)),
			RoundIndex:    0,
			Sequence:      seq,
			Buyer:         alice,
			PayAsset:      usdt,
			Amount:        types.Units(100, 6),
			USDValue:      types.MustParseUSD("100"),
			BaseTokens:    types.Units(2000, 18),
			BonusTokens:   types.NewAmount(0),
			ReferrerBonus: types.NewAmount(0),
			Timestamp:     int64(seq),
		}))
	}
	page, err := rm.Settlements().List(ctx, relationaldb.SettlementQuery{RoundIndex: 0, AfterSeq: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].Sequence)
	assert.Equal(t, types.Units(2000, 18), page[0].BaseTokens)

	n, err := rm.Settlements().Count(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	empty, err := rm.Purchases().Get(ctx, 0, bob)
	require.NoError(t, err)
	assert.True(t, empty.BaseAllocation.IsZero())

	empty.ContributedUSD = types.MustParseUSD("100")
	empty.BaseAllocation = types.Units(2000, 18)
	empty.PurchaseCount = 1
	require.NoError(t, rm.Purchases().Upsert(ctx, empty))

	list, err := rm.Purchases().ListByRound(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bob, list[0].Buyer)
}
