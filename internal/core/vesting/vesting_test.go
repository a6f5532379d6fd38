package vesting

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/assets"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb/sqldb"
)

var (
	authority = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	round     = types.MustParseAddress("0x00000000000000000000000000000000000000b2")
	pool      = types.MustParseAddress("0x00000000000000000000000000000000000000c3")
	token     = types.MustParseAddress("0x00000000000000000000000000000000000000d4")
	alice     = types.MustParseAddress("0x0000000000000000000000000000000000000011")
)

func tokens(n uint64) *types.Amount {
	return new(uint256.Int).Mul(uint256.NewInt(n), types.Pow10(types.TokenDecimals))
}

func TestScheduleCurve(t *testing.T) {
	s := Schedule{
		Total:    uint256.NewInt(1000),
		Claimed:  new(uint256.Int),
		Start:    1_000,
		Cliff:    100,
		Duration: 1_000,
	}

	tests := []struct {
		name string
		now  int64
		want uint64
	}{
		{"before start", 500, 0},
		{"before cliff", 1_099, 0},
		{"at cliff", 1_100, 0},
		{"quarter", 1_350, 250},
		{"half", 1_600, 500},
		{"truncates", 1_101, 1},
		{"end", 2_100, 1000},
		{"after end", 9_999, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Vested(tt.now).Uint64())
		})
	}
}

func TestScheduleZeroDurationReleasesAtCliff(t *testing.T) {
	s := Schedule{Total: uint256.NewInt(42), Claimed: new(uint256.Int), Start: 10, Cliff: 5}
	assert.True(t, s.Vested(14).IsZero())
	assert.Equal(t, uint64(42), s.Vested(15).Uint64())
}

func TestScheduleReleasableNeverExceedsTotal(t *testing.T) {
	s := Schedule{Total: uint256.NewInt(1000), Claimed: uint256.NewInt(600), Start: 0, Cliff: 0, Duration: 100}
	assert.True(t, s.Releasable(50).IsZero())
	assert.Equal(t, uint64(100), s.Releasable(70).Uint64())
	assert.Equal(t, uint64(400), s.Releasable(1_000).Uint64())
}

type fixture struct {
	store  *sqldb.RepositoryManager
	ledger *Ledger
	grant  access.Grant
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqldb.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(ctx) })

	f := &fixture{store: store, clock: time.Unix(1_700_000_000, 0)}
	f.ledger = New(assets.NewBook(nil), nil, func() time.Time { return f.clock })
	f.ledger.Bind(pool, token)

	require.NoError(t, access.Bootstrap(ctx, store, access.LedgerVesting, authority, f.clock))
	admin, err := access.Require(ctx, store, access.LedgerVesting, access.CapAdmin, authority)
	require.NoError(t, err)
	_, err = access.Authorize(ctx, store, admin, round, access.CapRound, f.clock)
	require.NoError(t, err)
	f.grant, err = access.Require(ctx, store, access.LedgerVesting, access.CapRound, round)
	require.NoError(t, err)
	return f
}

func TestGrantAndClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Grant(ctx, f.store, f.grant, GrantRequest{
		Beneficiary: alice,
		Amount:      tokens(2000),
		Start:       f.clock,
		Cliff:       30 * 24 * time.Hour,
		Duration:    180 * 24 * time.Hour,
		RoundIndex:  0,
	})
	require.NoError(t, err)

	_, err = f.ledger.Claim(ctx, f.store, alice)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	f.clock = f.clock.Add(30*24*time.Hour + 90*24*time.Hour)
	paid, err := f.ledger.Claim(ctx, f.store, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens(1000), paid)

	_, err = f.ledger.Claim(ctx, f.store, alice)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	f.clock = f.clock.Add(365 * 24 * time.Hour)
	paid, err = f.ledger.Claim(ctx, f.store, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens(1000), paid)

	bal, err := assets.NewBook(nil).BalanceOf(ctx, f.store, token, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens(2000), bal)

	left, err := assets.NewBook(nil).BalanceOf(ctx, f.store, token, pool)
	require.NoError(t, err)
	assert.True(t, left.IsZero())
}

func TestIndependentGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, start := range []time.Time{f.clock, f.clock.Add(100 * time.Second)} {
		_, err := f.ledger.Grant(ctx, f.store, f.grant, GrantRequest{
			Beneficiary: alice,
			Amount:      uint256.NewInt(1000),
			Start:       start,
			Duration:    200 * time.Second,
			RoundIndex:  uint64(i),
		})
		require.NoError(t, err)
	}

	f.clock = f.clock.Add(200 * time.Second)
	sum, err := f.ledger.Summary(ctx, f.store, alice)
	require.NoError(t, err)
	require.Len(t, sum.Grants, 2)
	assert.Equal(t, uint64(2000), sum.Total.Uint64())
	assert.Equal(t, uint64(1500), sum.Releasable.Uint64())
	assert.Equal(t, uint64(500), sum.Locked.Uint64())
	assert.True(t, sum.Claimed.IsZero())
}

func TestGrantGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Grant(ctx, f.store, access.Grant{}, GrantRequest{Beneficiary: alice, Amount: uint256.NewInt(1)})
	var unauthorized *access.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, access.LedgerVesting, unauthorized.Ledger)

	_, err = f.ledger.Grant(ctx, f.store, f.grant, GrantRequest{Beneficiary: types.ZeroAddress, Amount: uint256.NewInt(1)})
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = f.ledger.Grant(ctx, f.store, f.grant, GrantRequest{Beneficiary: alice, Amount: new(uint256.Int)})
	assert.ErrorIs(t, err, ErrInvalidGrant)

	unbound := New(assets.NewBook(nil), nil, nil)
	_, err = unbound.Grant(ctx, f.store, f.grant, GrantRequest{Beneficiary: alice, Amount: uint256.NewInt(1)})
	assert.ErrorIs(t, err, ErrUnbound)
}
