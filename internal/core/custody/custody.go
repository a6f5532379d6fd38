// Package custody tracks the funds collected by sale rounds. Only
// allow-listed depositors can add funds and only the controlling
// authority can take them out.
package custody

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/assets"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

var (
	ErrZeroAmount          = errors.New("zero amount")
	ErrInsufficientBalance = errors.New("insufficient custody balance")
	ErrUnbound             = errors.New("custody vault not bound")
)

// Balance is one line of the custody report.
type Balance struct {
	Asset  types.Address `json:"asset"`
	Amount *types.Amount `json:"amount"`
}

// Custody is the funds vault. It is created unbound and bound to its
// address once the system record exists.
type Custody struct {
	book   *assets.Book
	logger *zap.Logger

	mu    sync.RWMutex
	vault types.Address
}

func New(book *assets.Book, logger *zap.Logger) *Custody {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Custody{book: book, logger: logger.With(zap.String("module", "custody"))}
}

// Bind sets the vault address.
func (c *Custody) Bind(vault types.Address) {
	c.mu.Lock()
	c.vault = vault
	c.mu.Unlock()
}

// Address returns the bound vault address.
func (c *Custody) Address() (types.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vault == types.ZeroAddress {
		return types.ZeroAddress, ErrUnbound
	}
	return c.vault, nil
}

func (c *Custody) credit(ctx context.Context, repos relationaldb.Repositories, asset types.Address, amount *types.Amount) error {
	bal, err := repos.Custody().Balance(ctx, asset)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("custody balance overflow for %s", asset.Hex())
	}
	return repos.Custody().SetBalance(ctx, asset, sum)
}

// Deposit pulls amount of asset from payer into the vault on behalf of the
// depositor holding grant. For the native asset the amount is the value
// attached by the payer; tokens are pulled through the payer's allowance
// to the depositor.
func (c *Custody) Deposit(ctx context.Context, repos relationaldb.Repositories, grant access.Grant, asset, payer types.Address, amount *types.Amount) error {
	if err := grant.Check(access.LedgerCustody, access.CapRound); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	vault, err := c.Address()
	if err != nil {
		return err
	}
	if err := c.book.TransferFrom(ctx, repos, asset, grant.Holder(), payer, vault, amount); err != nil {
		return err
	}
	return c.credit(ctx, repos, asset, amount)
}

// DepositNative records attached native value from payer.
func (c *Custody) DepositNative(ctx context.Context, repos relationaldb.Repositories, grant access.Grant, payer types.Address, amount *types.Amount) error {
	return c.Deposit(ctx, repos, grant, types.ZeroAddress, payer, amount)
}

// DepositToken pulls a token from payer.
func (c *Custody) DepositToken(ctx context.Context, repos relationaldb.Repositories, grant access.Grant, token, payer types.Address, amount *types.Amount) error {
	if token == types.ZeroAddress {
		return fmt.Errorf("deposit token: use the native deposit for the zero address")
	}
	return c.Deposit(ctx, repos, grant, token, payer, amount)
}

// Withdraw sends amount of asset to to. Only the authority holds the
// admin grant.
func (c *Custody) Withdraw(ctx context.Context, repos relationaldb.Repositories, admin access.Grant, asset, to types.Address, amount *types.Amount) error {
	if err := admin.Check(access.LedgerCustody, access.CapAdmin); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if to == types.ZeroAddress {
		return fmt.Errorf("withdraw: zero recipient")
	}
	vault, err := c.Address()
	if err != nil {
		return err
	}
	bal, err := repos.Custody().Balance(ctx, asset)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: holds %s, requested %s", ErrInsufficientBalance, bal.Dec(), amount.Dec())
	}
	if err := repos.Custody().SetBalance(ctx, asset, new(uint256.Int).Sub(bal, amount)); err != nil {
		return err
	}
	if err := c.book.Transfer(ctx, repos, asset, vault, to, amount); err != nil {
		return err
	}
	c.logger.Info("custody withdrawal",
		zap.String("asset", asset.Hex()), zap.String("to", to.Hex()), zap.String("amount", amount.Dec()))
	return nil
}

// AuthorizeDepositor adds depositor to the allow-list.
func (c *Custody) AuthorizeDepositor(ctx context.Context, repos relationaldb.Repositories, admin access.Grant, depositor types.Address, now time.Time) (bool, error) {
	if err := admin.Check(access.LedgerCustody, access.CapAdmin); err != nil {
		return false, err
	}
	return access.Authorize(ctx, repos, admin, depositor, access.CapRound, now)
}

// RevokeDepositor removes depositor from the allow-list.
func (c *Custody) RevokeDepositor(ctx context.Context, repos relationaldb.Repositories, admin access.Grant, depositor types.Address) (bool, error) {
	if err := admin.Check(access.LedgerCustody, access.CapAdmin); err != nil {
		return false, err
	}
	return access.Revoke(ctx, repos, admin, depositor, access.CapRound)
}

// IsDepositor reports whether addr may deposit.
func (c *Custody) IsDepositor(ctx context.Context, repos relationaldb.Repositories, addr types.Address) (bool, error) {
	return repos.Capabilities().Has(ctx, string(access.LedgerCustody), string(access.CapRound), addr)
}

// BalanceOf returns the tracked balance of one asset.
func (c *Custody) BalanceOf(ctx context.Context, repos relationaldb.Repositories, asset types.Address) (*types.Amount, error) {
	return repos.Custody().Balance(ctx, asset)
}

// Balances returns every non-zero tracked balance.
func (c *Custody) Balances(ctx context.Context, repos relationaldb.Repositories) ([]Balance, error) {
	all, err := repos.Custody().Balances(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(all))
	for asset, amount := range all {
		if amount.IsZero() {
			continue
		}
		out = append(out, Balance{Asset: asset, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Asset[:], out[j].Asset[:]) < 0 })
	return out, nil
}
