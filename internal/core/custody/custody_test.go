package custody

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/assets"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb/sqldb"
)

var (
	multisig  = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	depositor = types.MustParseAddress("0x00000000000000000000000000000000000000b2")
	vaultAddr = types.MustParseAddress("0x00000000000000000000000000000000000000c3")
	payer     = types.MustParseAddress("0x0000000000000000000000000000000000000011")
	recipient = types.MustParseAddress("0x0000000000000000000000000000000000000099")
	usdc      = types.MustParseAddress("0x00000000000000000000000000000000000000d6")
)

type fixture struct {
	store    *sqldb.RepositoryManager
	book     *assets.Book
	custody  *Custody
	adminCap access.Grant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqldb.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(ctx) })

	book := assets.NewBook(nil)
	c := New(book, nil)
	c.Bind(vaultAddr)

	require.NoError(t, access.Bootstrap(ctx, store, access.LedgerCustody, multisig, time.Now()))
	adminCap, err := access.Require(ctx, store, access.LedgerCustody, access.CapAdmin, multisig)
	require.NoError(t, err)

	return &fixture{store: store, book: book, custody: c, adminCap: adminCap}
}

func (f *fixture) depositorGrant(t *testing.T) access.Grant {
	t.Helper()
	ctx := context.Background()
	added, err := f.custody.AuthorizeDepositor(ctx, f.store, f.adminCap, depositor, time.Now())
	require.NoError(t, err)
	assert.True(t, added)
	g, err := access.Require(ctx, f.store, access.LedgerCustody, access.CapRound, depositor)
	require.NoError(t, err)
	return g
}

func TestDepositAndWithdrawNative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grant := f.depositorGrant(t)

	require.NoError(t, f.book.Credit(ctx, f.store, types.ZeroAddress, payer, types.Units(2, 18)))
	require.NoError(t, f.custody.DepositNative(ctx, f.store, grant, payer, types.Units(1, 18)))

	bal, err := f.custody.BalanceOf(ctx, f.store, types.ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, types.Units(1, 18), bal)

	err = f.custody.Withdraw(ctx, f.store, f.adminCap, types.ZeroAddress, recipient, types.Units(2, 18))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	require.NoError(t, f.custody.Withdraw(ctx, f.store, f.adminCap, types.ZeroAddress, recipient, types.Units(1, 18)))
	bal, err = f.custody.BalanceOf(ctx, f.store, types.ZeroAddress)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	received, err := f.book.BalanceOf(ctx, f.store, types.ZeroAddress, recipient)
	require.NoError(t, err)
	assert.Equal(t, types.Units(1, 18), received)
}

func TestDepositToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grant := f.depositorGrant(t)

	require.NoError(t, f.book.Credit(ctx, f.store, usdc, payer, types.Units(500, 6)))
	err := f.custody.DepositToken(ctx, f.store, grant, usdc, payer, types.Units(100, 6))
	assert.True(t, errors.Is(err, assets.ErrInsufficientAllowance))

	require.NoError(t, f.book.Approve(ctx, f.store, usdc, payer, depositor, types.Units(100, 6)))
	require.NoError(t, f.custody.DepositToken(ctx, f.store, grant, usdc, payer, types.Units(100, 6)))

	balances, err := f.custody.Balances(ctx, f.store)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, usdc, balances[0].Asset)
	assert.Equal(t, types.Units(100, 6), balances[0].Amount)
}

func TestDepositGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grant := f.depositorGrant(t)

	assert.True(t, errors.Is(f.custody.DepositNative(ctx, f.store, grant, payer, types.NewAmount(0)), ErrZeroAmount))

	// a stranger never obtains the depositor grant
	stranger := types.MustParseAddress("0x0000000000000000000000000000000000000077")
	_, err := access.Require(ctx, f.store, access.LedgerCustody, access.CapRound, stranger)
	assert.True(t, errors.Is(err, access.ErrUnauthorized))

	err = f.custody.DepositNative(ctx, f.store, access.Grant{}, payer, types.NewAmount(1))
	assert.True(t, errors.Is(err, access.ErrUnauthorized))

	err = f.custody.Withdraw(ctx, f.store, grant, types.ZeroAddress, recipient, types.NewAmount(1))
	assert.True(t, errors.Is(err, access.ErrUnauthorized), "depositors cannot withdraw")

	removed, err := f.custody.RevokeDepositor(ctx, f.store, f.adminCap, depositor)
	require.NoError(t, err)
	assert.True(t, removed)
	ok, err := f.custody.IsDepositor(ctx, f.store, depositor)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnboundVault(t *testing.T) {
	c := New(assets.NewBook(nil), nil)
	_, err := c.Address()
	assert.True(t, errors.Is(err, ErrUnbound))
}
