// Package assets is the in-store asset book: balances and allowances of
// every payment asset and of the sale token. It stands in for the token
// contracts the settlement engine pulls from and pays out of.
package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAmount            = errors.New("zero amount")
)

// Book moves balances between owners.
type Book struct {
	logger *zap.Logger
}

func NewBook(logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{logger: logger.With(zap.String("module", "assets"))}
}

func (b *Book) BalanceOf(ctx context.Context, repos relationaldb.Repositories, asset, owner types.Address) (*types.Amount, error) {
	return repos.Assets().Balance(ctx, asset, owner)
}

func (b *Book) Allowance(ctx context.Context, repos relationaldb.Repositories, asset, owner, spender types.Address) (*types.Amount, error) {
	return repos.Assets().Allowance(ctx, asset, owner, spender)
}

// Credit mints amount to owner.
func (b *Book) Credit(ctx context.Context, repos relationaldb.Repositories, asset, owner types.Address, amount *types.Amount) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	bal, err := repos.Assets().Balance(ctx, asset, owner)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("credit %s: balance overflow", owner.Hex())
	}
	return repos.Assets().SetBalance(ctx, asset, owner, sum)
}

// Approve sets the amount spender may pull from owner.
func (b *Book) Approve(ctx context.Context, repos relationaldb.Repositories, asset, owner, spender types.Address, amount *types.Amount) error {
	if owner == types.ZeroAddress || spender == types.ZeroAddress {
		return fmt.Errorf("approve: zero address")
	}
	return repos.Assets().SetAllowance(ctx, asset, owner, spender, amount)
}

// Transfer moves amount from one owner to another.
func (b *Book) Transfer(ctx context.Context, repos relationaldb.Repositories, asset, from, to types.Address, amount *types.Amount) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	fromBal, err := repos.Assets().Balance(ctx, asset, from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if err := repos.Assets().SetBalance(ctx, asset, from, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := repos.Assets().Balance(ctx, asset, to)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return fmt.Errorf("transfer to %s: balance overflow", to.Hex())
	}
	return repos.Assets().SetBalance(ctx, asset, to, sum)
}

// TransferFrom lets spender pull amount of a token from owner, spending
// allowance. The native asset has no allowance: it is the value attached
// to the call and is taken from the owner's balance directly.
func (b *Book) TransferFrom(ctx context.Context, repos relationaldb.Repositories, asset, spender, from, to types.Address, amount *types.Amount) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if asset != types.ZeroAddress {
		allowance, err := repos.Assets().Allowance(ctx, asset, from, spender)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: %s approved %s for %s, needs %s",
				ErrInsufficientAllowance, from.Hex(), spender.Hex(), allowance.Dec(), amount.Dec())
		}
		if err := repos.Assets().SetAllowance(ctx, asset, from, spender, new(uint256.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return b.Transfer(ctx, repos, asset, from, to, amount)
}
