package sale

import (
	"context"

	"github.com/LeJamon/goPresale/internal/core/custody"
	"github.com/LeJamon/goPresale/internal/core/ratelimit"
	"github.com/LeJamon/goPresale/internal/core/referral"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/core/vesting"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Purchase returns the buyer's record in a round.
func (e *Engine) Purchase(ctx context.Context, round uint64, buyer types.Address) (*relationaldb.PurchaseRow, error) {
	if _, err := e.roundConfig(ctx, round); err != nil {
		return nil, err
	}
	return e.Store.Purchases().Get(ctx, round, buyer)
}

// Purchases lists every buyer record in a round.
func (e *Engine) Purchases(ctx context.Context, round uint64) ([]relationaldb.PurchaseRow, error) {
	return e.Store.Purchases().ListByRound(ctx, round)
}

func (e *Engine) VestingSummary(ctx context.Context, addr types.Address) (*vesting.Summary, error) {
	return e.Vesting.Summary(ctx, e.Store, addr)
}

// Claim pays addr everything its grants have released.
func (e *Engine) Claim(ctx context.Context, addr types.Address) (*types.Amount, error) {
	var paid *types.Amount
	err := e.Store.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		if _, err := systemState(ctx, tx); err != nil {
			return err
		}
		var err error
		paid, err = e.Vesting.Claim(ctx, tx, addr)
		return err
	})
	return paid, classify(err)
}

func (e *Engine) ReferralInfo(ctx context.Context, addr types.Address) (*referral.Info, error) {
	return e.Referrals.Info(ctx, e.Store, addr)
}

func (e *Engine) RateLimitInfo(ctx context.Context, addr types.Address) (*ratelimit.Info, error) {
	return e.Limiter.Info(ctx, e.Store, addr)
}

func (e *Engine) RateLimitConfig(ctx context.Context) (ratelimit.Config, error) {
	return e.Limiter.Config(ctx, e.Store)
}

func (e *Engine) CustodyBalances(ctx context.Context) ([]custody.Balance, error) {
	return e.Custody.Balances(ctx, e.Store)
}

func (e *Engine) IsDepositor(ctx context.Context, addr types.Address) (bool, error) {
	return e.Custody.IsDepositor(ctx, e.Store, addr)
}

// AssetBalance reports an owner's balance and, when spender is set, the
// allowance granted to it.
func (e *Engine) AssetBalance(ctx context.Context, asset, owner, spender types.Address) (*types.Amount, *types.Amount, error) {
	bal, err := e.Book.BalanceOf(ctx, e.Store, asset, owner)
	if err != nil {
		return nil, nil, err
	}
	if spender == types.ZeroAddress {
		return bal, nil, nil
	}
	allowance, err := e.Book.Allowance(ctx, e.Store, asset, owner, spender)
	return bal, allowance, err
}

// Approve lets spender, usually a round address, pull amount of a token
// from owner.
func (e *Engine) Approve(ctx context.Context, asset, owner, spender types.Address, amount *types.Amount) error {
	if asset == types.ZeroAddress {
		return invalid("the native asset needs no approval")
	}
	if amount == nil {
		return invalid("allowance amount is required")
	}
	if _, err := e.lookupAsset(asset); err != nil {
		return err
	}
	err := e.Store.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		return e.Book.Approve(ctx, tx, asset, owner, spender, amount)
	})
	return classify(err)
}

// Settlements pages through a round's settlement records.
func (e *Engine) Settlements(ctx context.Context, q relationaldb.SettlementQuery) ([]relationaldb.SettlementRow, error) {
	return e.Store.Settlements().List(ctx, q)
}
