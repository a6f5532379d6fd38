package sale

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/eligibility"
	"github.com/LeJamon/goPresale/internal/core/pricing"
	"github.com/LeJamon/goPresale/internal/core/ratelimit"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/database/memory"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb/sqldb"
)

var (
	authority = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	saleToken = types.MustParseAddress("0x00000000000000000000000000000000000000e7")
	usdtAddr  = types.MustParseAddress("0x00000000000000000000000000000000000000d6")
	alice     = types.MustParseAddress("0x0000000000000000000000000000000000000011")
	bob       = types.MustParseAddress("0x0000000000000000000000000000000000000022")
	carol     = types.MustParseAddress("0x0000000000000000000000000000000000000033")

	usdt = types.Asset{Symbol: "USDT", Address: usdtAddr, Decimals: 6, Kind: types.AssetStable}
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *sqldb.RepositoryManager
	kyc    *eligibility.Registry
	engine *Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqldb.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(ctx) })

	f := &fixture{t: t, ctx: ctx, store: store, now: time.Unix(1_700_000_000, 0)}
	clock := func() time.Time { return f.now }

	f.kyc = eligibility.NewRegistry(memory.New(), nil, clock)
	prices, err := pricing.NewResolver(pricing.ResolverConfig{MaxAge: time.Minute}, clock)
	require.NoError(t, err)
	table, err := types.NewAssetTable(types.NativeAsset, usdt)
	require.NoError(t, err)

	f.engine, err = New(Config{DefaultOracle: "static:3000"}, Deps{
		Store:       store,
		Eligibility: f.kyc,
		Prices:      prices,
		Assets:      table,
		Now:         clock,
	})
	require.NoError(t, err)
	return f
}

// ready initializes the system and opens round 0: $0.05 a token, $1000
// cap, 30 day cliff, 180 day vesting.
func (f *fixture) ready() *Round {
	f.t.Helper()
	_, err := f.engine.Initialize(f.ctx, InitParams{
		Authority: authority,
		SaleToken: saleToken,
		RateLimit: ratelimit.DefaultConfig(),
	})
	require.NoError(f.t, err)

	round, err := f.engine.CreateRound(f.ctx, RoundConfig{
		Name:            "Seed",
		TokenPriceUSD:   types.MustParseUSD("0.05"),
		HardCapUSD:      types.MustParseUSD("1000"),
		StartTime:       f.now.Add(-time.Hour),
		EndTime:         f.now.Add(24 * time.Hour),
		CliffDuration:   30 * 24 * time.Hour,
		VestingDuration: 180 * 24 * time.Hour,
		IsActive:        true,
	})
	require.NoError(f.t, err)
	_, err = f.engine.AuthorizeRound(f.ctx, round.Index)
	require.NoError(f.t, err)
	return round
}

// fund approves buyer for KYC and gives it usd worth of USDT approved to
// the round.
func (f *fixture) fund(round *Round, buyer types.Address, usd uint64) {
	f.t.Helper()
	approved, err := f.kyc.IsApproved(f.ctx, buyer)
	require.NoError(f.t, err)
	if !approved {
		require.NoError(f.t, f.kyc.Add(f.ctx, buyer))
	}
	require.NoError(f.t, f.engine.Credit(f.ctx, usdtAddr, buyer, types.Units(usd, 6)))
	require.NoError(f.t, f.engine.Approve(f.ctx, usdtAddr, buyer, round.Address, types.Units(usd, 6)))
}

func (f *fixture) buy(buyer types.Address, usd uint64, referrer types.Address) (*relationaldb.SettlementRow, error) {
	return f.engine.Buy(f.ctx, BuyRequest{
		Round:    0,
		Buyer:    buyer,
		Asset:    usdtAddr,
		Amount:   types.Units(usd, 6),
		Referrer: referrer,
	})
}

func tokens(n uint64) *types.Amount {
	return types.Units(n, types.TokenDecimals)
}

func TestBaseTokens(t *testing.T) {
	assert.Equal(t, tokens(2000), BaseTokens(types.MustParseUSD("100"), types.MustParseUSD("0.05")))
	// $1 at $0.03 leaves a remainder that is truncated
	got := BaseTokens(types.MustParseUSD("1"), types.MustParseUSD("0.03"))
	want, _ := uint256.FromDecimal("33333333333333333333")
	assert.Equal(t, want, got)
}

func TestBuyWithoutReferrer(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	f.fund(round, alice, 100)

	s, err := f.buy(alice, 100, types.ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Sequence)
	assert.Equal(t, types.MustParseUSD("100"), s.USDValue)
	assert.Equal(t, tokens(2000), s.BaseTokens)
	assert.True(t, s.BonusTokens.IsZero())

	v, err := f.engine.VestingSummary(f.ctx, alice)
	require.NoError(t, err)
	require.Len(t, v.Grants, 1)
	assert.Equal(t, tokens(2000), v.Total)
	assert.Equal(t, f.now.Unix(), v.Grants[0].StartTime)
	assert.Equal(t, int64(30*24*3600), v.Grants[0].CliffDuration)
	assert.Equal(t, int64(180*24*3600), v.Grants[0].VestingDuration)

	balances, err := f.engine.CustodyBalances(f.ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, usdtAddr, balances[0].Asset)
	assert.Equal(t, types.Units(100, 6), balances[0].Amount)

	r, err := f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("100"), r.TotalRaisedUSD)
	assert.Equal(t, tokens(2000), r.TotalTokensSold)
	assert.Equal(t, types.MustParseUSD("900"), r.RemainingUSD)

	p, err := f.engine.Purchase(f.ctx, 0, alice)
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("100"), p.ContributedUSD)
	assert.Equal(t, tokens(2000), p.BaseAllocation)
	assert.Equal(t, uint64(1), p.PurchaseCount)

	info, err := f.engine.RateLimitInfo(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.TxCountInWindow)
	assert.Equal(t, types.MustParseUSD("100"), info.DailySpentUSD)
}

func TestBuyWithReferrer(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	f.fund(round, bob, 200)
	require.NoError(t, f.kyc.Add(f.ctx, carol))

	s, err := f.buy(bob, 200, carol)
	require.NoError(t, err)
	assert.Equal(t, tokens(4000), s.BaseTokens)
	assert.Equal(t, tokens(200), s.BonusTokens)
	assert.Equal(t, tokens(200), s.ReferrerBonus)
	assert.Equal(t, carol, s.Referrer)

	buyer, err := f.engine.VestingSummary(f.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, tokens(4200), buyer.Total)

	referrer, err := f.engine.VestingSummary(f.ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, tokens(200), referrer.Total)

	bobRef, err := f.engine.ReferralInfo(f.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, tokens(200), bobRef.EarnedAsReferee)

	carolRef, err := f.engine.ReferralInfo(f.ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, tokens(200), carolRef.EarnedAsReferrer)
	assert.Equal(t, uint64(1), carolRef.ReferralCount)

	carolPurchase, err := f.engine.Purchase(f.ctx, 0, carol)
	require.NoError(t, err)
	assert.Equal(t, tokens(200), carolPurchase.BonusAllocation)
	assert.Equal(t, types.USD(0), carolPurchase.ContributedUSD)

	r, err := f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, tokens(4400), r.TotalTokensSold)
}

func TestInvalidReferrerIsIgnored(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	f.fund(round, alice, 300)

	for name, referrer := range map[string]types.Address{"self": alice, "unapproved": carol} {
		t.Run(name, func(t *testing.T) {
			s, err := f.buy(alice, 100, referrer)
			require.NoError(t, err)
			assert.True(t, s.BonusTokens.IsZero())
			assert.Equal(t, types.ZeroAddress, s.Referrer)
			f.now = f.now.Add(time.Minute)
		})
	}

	info, err := f.engine.ReferralInfo(f.ctx, carol)
	require.NoError(t, err)
	assert.True(t, info.EarnedAsReferrer.IsZero())
}

func TestBuyRejections(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	f.fund(round, alice, 1000)

	_, err := f.buy(bob, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrNotEligible)

	require.NoError(t, f.engine.Pause(f.ctx, 0))
	_, err = f.buy(alice, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrRoundPaused)
	require.NoError(t, f.engine.Unpause(f.ctx, 0))

	_, err = f.engine.Buy(f.ctx, BuyRequest{Round: 0, Buyer: alice, Asset: carol, Amount: types.Units(1, 6)})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = f.buy(alice, 600, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrDailyCapExceeded)

	_, err = f.buy(alice, 100, types.ZeroAddress)
	require.NoError(t, err)
	_, err = f.buy(alice, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrTooFrequent)
	assert.Equal(t, "tooFrequent", Reason(err))

	saved := f.now
	f.now = round.Config.EndTime.Add(time.Second)
	_, err = f.buy(alice, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrRoundEnded)
	f.now = round.Config.StartTime.Add(-time.Second)
	_, err = f.buy(alice, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrRoundNotStarted)
	f.now = saved

	_, err = f.engine.GetRound(f.ctx, 7)
	assert.ErrorIs(t, err, ErrRoundNotFound)
}

func TestFailedPurchaseLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.ready()
	require.NoError(t, f.kyc.Add(f.ctx, alice))
	require.NoError(t, f.engine.Credit(f.ctx, usdtAddr, alice, types.Units(100, 6)))

	// no allowance for the round
	_, err := f.buy(alice, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrInsufficientAllowanceOrBalance)
	assert.Equal(t, "insufficientAllowanceOrBalance", Reason(err))

	info, err := f.engine.RateLimitInfo(f.ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, info.TxCountInWindow)
	assert.Zero(t, info.LastTxTime)

	r, err := f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, r.TotalRaisedUSD)
	assert.Zero(t, r.SettlementCount)

	bal, _, err := f.engine.AssetBalance(f.ctx, usdtAddr, alice, types.ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, types.Units(100, 6), bal)
}

func TestHardCapUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	round := f.ready()

	buyers := make([]types.Address, 12)
	for i := range buyers {
		buyers[i] = types.BytesToAddress([]byte{0x10, byte(i + 1)})
		f.fund(round, buyers[i], 100)
	}

	var settled, capped atomic.Int32
	var g errgroup.Group
	for _, b := range buyers {
		b := b
		g.Go(func() error {
			_, err := f.buy(b, 100, types.ZeroAddress)
			switch {
			case err == nil:
				settled.Add(1)
			case errors.Is(err, ErrHardCapExceeded):
				capped.Add(1)
			default:
				return fmt.Errorf("buyer %s: %w", b.Hex(), err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(10), settled.Load())
	assert.Equal(t, int32(2), capped.Load())

	r, err := f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("1000"), r.TotalRaisedUSD)
	assert.Equal(t, uint64(10), r.SettlementCount)

	rows, err := f.engine.Settlements(f.ctx, relationaldb.SettlementQuery{RoundIndex: 0})
	require.NoError(t, err)
	require.Len(t, rows, 10)
	var sum types.USD
	for i, s := range rows {
		assert.Equal(t, uint64(i+1), s.Sequence)
		sum += s.USDValue
	}
	assert.Equal(t, r.TotalRaisedUSD, sum)
}

func TestNativePurchase(t *testing.T) {
	f := newFixture(t)
	f.ready()
	require.NoError(t, f.kyc.Add(f.ctx, alice))
	require.NoError(t, f.engine.Credit(f.ctx, types.ZeroAddress, alice, types.Units(1, 18)))

	// 0.1 ETH at $3000 is $300, 6000 tokens at $0.05
	s, err := f.engine.Buy(f.ctx, BuyRequest{Round: 0, Buyer: alice, Asset: types.ZeroAddress, Amount: types.Units(1, 17)})
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUSD("300"), s.USDValue)
	assert.Equal(t, tokens(6000), s.BaseTokens)

	vault, err := f.engine.Custody.Address()
	require.NoError(t, err)
	held, _, err := f.engine.AssetBalance(f.ctx, types.ZeroAddress, vault, types.ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, types.Units(1, 17), held)
}

func TestUpdateOracleChecksFeed(t *testing.T) {
	f := newFixture(t)
	f.ready()
	err := f.engine.UpdateOracle(f.ctx, 0, "static:0")
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	r, err := f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "static:3000", r.Oracle)

	require.NoError(t, f.engine.UpdateOracle(f.ctx, 0, "static:2500"))
	r, err = f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "static:2500", r.Oracle)
}

// gatedFeed prices at $3000 and, once held, blocks until released.
type gatedFeed struct {
	now     func() time.Time
	held    atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedFeed) Reference() string { return "gated:3000" }

func (g *gatedFeed) LatestPrice(ctx context.Context) (pricing.Price, error) {
	if g.held.Load() {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return pricing.Price{}, ctx.Err()
		}
	}
	return pricing.Price{Answer: types.Units(3000, pricing.FeedDecimals), Decimals: pricing.FeedDecimals, UpdatedAt: g.now()}, nil
}

func TestSlowFeedDoesNotHoldRoundLock(t *testing.T) {
	f := newFixture(t)
	f.ready()
	feed := &gatedFeed{now: func() time.Time { return f.now }, entered: make(chan struct{}), release: make(chan struct{})}
	f.engine.Prices.Register(feed)
	require.NoError(t, f.engine.UpdateOracle(f.ctx, 0, feed.Reference()))
	require.NoError(t, f.kyc.Add(f.ctx, alice))
	require.NoError(t, f.engine.Credit(f.ctx, types.ZeroAddress, alice, types.Units(1, 18)))

	feed.held.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Buy(f.ctx, BuyRequest{Round: 0, Buyer: alice, Asset: types.ZeroAddress, Amount: types.Units(1, 17)})
		done <- err
	}()
	<-feed.entered

	ctx, cancel := context.WithTimeout(f.ctx, time.Second)
	defer cancel()
	unlock, err := f.engine.Locker.Lock(ctx, "round/0")
	require.NoError(t, err, "round lock is free while the feed is read")
	unlock()

	close(feed.release)
	require.NoError(t, <-done)
}

func TestOracleChangeBeforeSettleRejects(t *testing.T) {
	f := newFixture(t)
	f.ready()
	feed := &gatedFeed{now: func() time.Time { return f.now }, entered: make(chan struct{}), release: make(chan struct{})}
	f.engine.Prices.Register(feed)
	require.NoError(t, f.engine.UpdateOracle(f.ctx, 0, feed.Reference()))
	require.NoError(t, f.kyc.Add(f.ctx, alice))
	require.NoError(t, f.engine.Credit(f.ctx, types.ZeroAddress, alice, types.Units(1, 18)))

	feed.held.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Buy(f.ctx, BuyRequest{Round: 0, Buyer: alice, Asset: types.ZeroAddress, Amount: types.Units(1, 17)})
		done <- err
	}()
	<-feed.entered
	require.NoError(t, f.engine.UpdateOracle(f.ctx, 0, "static:2500"))
	close(feed.release)

	assert.ErrorIs(t, <-done, ErrPriceUnavailable)
	r, err := f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, r.SettlementCount)
}

func TestRevokedRoundCannotSettle(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	f.fund(round, alice, 100)

	require.NoError(t, f.engine.RevokeRound(f.ctx, 0))
	status, err := f.engine.RoundCapabilities(f.ctx, 0)
	require.NoError(t, err)
	for _, ledger := range access.RoundLedgers {
		assert.False(t, status[ledger], ledger)
	}

	_, err = f.buy(alice, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrUnauthorized)
	var missing *access.MissingGrantsError
	require.ErrorAs(t, err, &missing)
	assert.Len(t, missing.Ledgers, 4)
	assert.Equal(t, "unauthorizedRateLimiter", Reason(err))

	caps, err := f.engine.AuthorizeRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, round.Address, caps.Vesting.Holder())
	_, err = f.engine.AuthorizeRound(f.ctx, 0)
	require.NoError(t, err)

	_, err = f.buy(alice, 100, types.ZeroAddress)
	require.NoError(t, err)
}

func TestInitialization(t *testing.T) {
	f := newFixture(t)
	_, err := f.buy(alice, 100, types.ZeroAddress)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = f.engine.CreateRound(f.ctx, RoundConfig{
		TokenPriceUSD: 1, HardCapUSD: 1, StartTime: f.now, EndTime: f.now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrNotInitialized)

	state, err := f.engine.Initialize(f.ctx, InitParams{Authority: authority, SaleToken: saleToken, RateLimit: ratelimit.DefaultConfig()})
	require.NoError(t, err)
	assert.Equal(t, types.DeriveAddress(authority, 0), state.Registry)
	assert.NotEqual(t, state.CustodyVault, state.VestingPool)

	_, err = f.engine.Initialize(f.ctx, InitParams{Authority: authority, SaleToken: saleToken, RateLimit: ratelimit.DefaultConfig()})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	// a second engine on the same store binds on open
	deps := f.engine.Deps
	deps.Custody, deps.Vesting = nil, nil
	other, err := New(Config{}, deps)
	require.NoError(t, err)
	require.NoError(t, other.Open(f.ctx))
	vault, err := other.Custody.Address()
	require.NoError(t, err)
	assert.Equal(t, state.CustodyVault, vault)
}

func TestCreateRoundValidation(t *testing.T) {
	f := newFixture(t)
	f.ready()

	base := RoundConfig{TokenPriceUSD: 1, HardCapUSD: 1, StartTime: f.now, EndTime: f.now.Add(time.Hour)}
	bad := map[string]func(c *RoundConfig){
		"window":    func(c *RoundConfig) { c.EndTime = c.StartTime },
		"price":     func(c *RoundConfig) { c.TokenPriceUSD = 0 },
		"cap":       func(c *RoundConfig) { c.HardCapUSD = 0 },
		"oracle":    func(c *RoundConfig) { c.Oracle = "carrier-pigeon" },
		"huge cap":  func(c *RoundConfig) { c.HardCapUSD = types.USD(1 << 63) },
		"neg cliff": func(c *RoundConfig) { c.CliffDuration = -time.Second },
	}
	for name, mutate := range bad {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			_, err := f.engine.CreateRound(f.ctx, c)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	r, err := f.engine.CreateRound(f.ctx, base)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Index)
	assert.Equal(t, "Round 2", r.Config.Name)

	byAddr, err := f.engine.RoundByAddress(f.ctx, r.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), byAddr.Index)
}

func TestClaimAfterVesting(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	f.fund(round, alice, 100)
	_, err := f.buy(alice, 100, types.ZeroAddress)
	require.NoError(t, err)

	_, err = f.engine.Claim(f.ctx, alice)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	f.now = f.now.Add(30*24*time.Hour + 90*24*time.Hour)
	paid, err := f.engine.Claim(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens(1000), paid)

	f.now = f.now.Add(365 * 24 * time.Hour)
	paid, err = f.engine.Claim(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens(1000), paid)

	bal, _, err := f.engine.AssetBalance(f.ctx, saleToken, alice, types.ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, tokens(2000), bal)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	f.fund(round, alice, 100)
	_, err := f.buy(alice, 100, types.ZeroAddress)
	require.NoError(t, err)

	err = f.engine.Withdraw(f.ctx, usdtAddr, authority, types.Units(101, 6))
	assert.ErrorIs(t, err, ErrInsufficientAllowanceOrBalance)

	require.NoError(t, f.engine.Withdraw(f.ctx, usdtAddr, authority, types.Units(60, 6)))
	bal, _, err := f.engine.AssetBalance(f.ctx, usdtAddr, authority, types.ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, types.Units(60, 6), bal)

	balances, err := f.engine.CustodyBalances(f.ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, types.Units(40, 6), balances[0].Amount)
}

func TestDiagnose(t *testing.T) {
	f := newFixture(t)
	round := f.ready()
	require.NoError(t, f.kyc.Add(f.ctx, alice))
	require.NoError(t, f.engine.Credit(f.ctx, usdtAddr, alice, types.Units(100, 6)))

	d, err := f.engine.Diagnose(f.ctx, BuyRequest{Round: 0, Buyer: alice, Asset: usdtAddr, Amount: types.Units(100, 6)})
	require.NoError(t, err)
	assert.False(t, d.OK)
	allowance, ok := d.Check("allowance")
	require.True(t, ok)
	assert.False(t, allowance.OK)
	for _, name := range []string{"eligible", "phase", "hard_cap", "rate_limit", "price", "capability_custody"} {
		c, ok := d.Check(name)
		require.True(t, ok, name)
		assert.True(t, c.OK, "%s: %s", name, c.Detail)
	}
	assert.Equal(t, tokens(2000), d.BaseTokens)

	require.NoError(t, f.engine.Approve(f.ctx, usdtAddr, alice, round.Address, types.Units(100, 6)))
	d, err = f.engine.Diagnose(f.ctx, BuyRequest{Round: 0, Buyer: alice, Asset: usdtAddr, Amount: types.Units(100, 6)})
	require.NoError(t, err)
	assert.True(t, d.OK)

	r, err := f.engine.GetRound(f.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, r.SettlementCount)

	names := make([]string, 0, len(d.Checks))
	for _, c := range d.Checks {
		names = append(names, c.Name)
	}
	for i := 0; i < 5; i++ {
		again, err := f.engine.Diagnose(f.ctx, BuyRequest{Round: 0, Buyer: alice, Asset: usdtAddr, Amount: types.Units(100, 6)})
		require.NoError(t, err)
		got := make([]string, 0, len(again.Checks))
		for _, c := range again.Checks {
			got = append(got, c.Name)
		}
		assert.Equal(t, names, got)
	}
	assert.Equal(t, "initialized", names[0])
	assert.Equal(t, "rate_limit", names[len(names)-1])
}

func TestAdminLimits(t *testing.T) {
	f := newFixture(t)
	f.ready()

	require.NoError(t, f.engine.UpdateDailySpendingLimit(f.ctx, types.MustParseUSD("50")))
	err := f.engine.UpdateDailySpendingLimit(f.ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, f.engine.UpdateRateLimitConfig(f.ctx, time.Minute, 3, time.Hour))
	cfg, err := f.engine.RateLimitConfig(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.MinTimeBetweenTx)
	assert.Equal(t, uint64(3), cfg.MaxTxPerPeriod)
	assert.Equal(t, types.MustParseUSD("50"), cfg.MaxDailySpendUSD)
}
