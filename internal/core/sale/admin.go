package sale

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// UpdateRateLimitConfig replaces spacing, count and period.
func (e *Engine) UpdateRateLimitConfig(ctx context.Context, minTime time.Duration, maxTx uint64, period time.Duration) error {
	return e.asAdmin(ctx, access.LedgerRateLimiter, func(tx relationaldb.TransactionContext, admin access.Grant, _ *relationaldb.SystemState) error {
		return e.Limiter.UpdateConfig(ctx, tx, admin, minTime, maxTx, period)
	})
}

// UpdateDailySpendingLimit replaces the daily USD cap.
func (e *Engine) UpdateDailySpendingLimit(ctx context.Context, limit types.USD) error {
	return e.asAdmin(ctx, access.LedgerRateLimiter, func(tx relationaldb.TransactionContext, admin access.Grant, _ *relationaldb.SystemState) error {
		return e.Limiter.UpdateDailySpendingLimit(ctx, tx, admin, limit)
	})
}

// ResetLimit clears the limiter state of addr.
func (e *Engine) ResetLimit(ctx context.Context, addr types.Address) error {
	return e.asAdmin(ctx, access.LedgerRateLimiter, func(tx relationaldb.TransactionContext, admin access.Grant, _ *relationaldb.SystemState) error {
		return e.Limiter.ResetLimit(ctx, tx, admin, addr)
	})
}

// Withdraw moves collected funds out of custody.
func (e *Engine) Withdraw(ctx context.Context, asset, to types.Address, amount *types.Amount) error {
	if asset != types.ZeroAddress {
		if _, err := e.lookupAsset(asset); err != nil {
			return err
		}
	}
	return e.asAdmin(ctx, access.LedgerCustody, func(tx relationaldb.TransactionContext, admin access.Grant, _ *relationaldb.SystemState) error {
		return e.Custody.Withdraw(ctx, tx, admin, asset, to, amount)
	})
}

// AuthorizeDepositor adds addr to the custody allow-list.
func (e *Engine) AuthorizeDepositor(ctx context.Context, addr types.Address) (bool, error) {
	var added bool
	err := e.asAdmin(ctx, access.LedgerCustody, func(tx relationaldb.TransactionContext, admin access.Grant, _ *relationaldb.SystemState) error {
		var err error
		added, err = e.Custody.AuthorizeDepositor(ctx, tx, admin, addr, e.Now())
		return err
	})
	return added, err
}

// RevokeDepositor removes addr from the custody allow-list.
func (e *Engine) RevokeDepositor(ctx context.Context, addr types.Address) (bool, error) {
	var removed bool
	err := e.asAdmin(ctx, access.LedgerCustody, func(tx relationaldb.TransactionContext, admin access.Grant, _ *relationaldb.SystemState) error {
		var err error
		removed, err = e.Custody.RevokeDepositor(ctx, tx, admin, addr)
		return err
	})
	return removed, err
}

// Credit issues amount of a payment asset to owner in the asset book. It
// is how funds enter the book on a test deployment.
func (e *Engine) Credit(ctx context.Context, asset, owner types.Address, amount *types.Amount) error {
	if _, err := e.lookupAsset(asset); err != nil {
		return err
	}
	if owner == types.ZeroAddress {
		return invalid("zero owner")
	}
	err := e.asAdmin(ctx, access.LedgerCustody, func(tx relationaldb.TransactionContext, _ access.Grant, _ *relationaldb.SystemState) error {
		return e.Book.Credit(ctx, tx, asset, owner, amount)
	})
	if err == nil {
		e.logger.Info("asset credited", zap.String("asset", asset.Hex()), zap.String("owner", owner.Hex()), zap.String("amount", amount.Dec()))
	}
	return err
}
