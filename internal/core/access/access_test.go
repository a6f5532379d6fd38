package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb/sqldb"
)

var (
	registry = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	round    = types.MustParseAddress("0x00000000000000000000000000000000000000b2")
	stranger = types.MustParseAddress("0x00000000000000000000000000000000000000c3")
)

func TestGrantCheck(t *testing.T) {
	var zero Grant
	err := zero.Check(LedgerVesting, CapRound)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var ue *UnauthorizedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, LedgerVesting, ue.Ledger)

	g := Grant{ledger: LedgerVesting, capability: CapRound, holder: round}
	assert.NoError(t, g.Check(LedgerVesting, CapRound))
	assert.Error(t, g.Check(LedgerCustody, CapRound))
	assert.Error(t, g.Check(LedgerVesting, CapAdmin))
}

func TestResolveRound(t *testing.T) {
	ctx := context.Background()
	store, err := sqldb.OpenMemory(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)
	now := time.Unix(1000, 0)

	for _, l := range RoundLedgers {
		require.NoError(t, Bootstrap(ctx, store, l, registry, now))
	}

	_, err = ResolveRound(ctx, store, round)
	var missing *MissingGrantsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, RoundLedgers, missing.Ledgers)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	// grant all but vesting
	for _, l := range []Ledger{LedgerRateLimiter, LedgerReferral, LedgerCustody} {
		admin, err := Require(ctx, store, l, CapAdmin, registry)
		require.NoError(t, err)
		added, err := Authorize(ctx, store, admin, round, CapRound, now)
		require.NoError(t, err)
		assert.True(t, added)
	}
	_, err = ResolveRound(ctx, store, round)
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Ledger{LedgerVesting}, missing.Ledgers)
	assert.Contains(t, err.Error(), "vesting")

	admin, err := Require(ctx, store, LedgerVesting, CapAdmin, registry)
	require.NoError(t, err)
	_, err = Authorize(ctx, store, admin, round, CapRound, now)
	require.NoError(t, err)

	caps, err := ResolveRound(ctx, store, round)
	require.NoError(t, err)
	assert.NoError(t, caps.Vesting.Check(LedgerVesting, CapRound))
	assert.NoError(t, caps.Custody.Check(LedgerCustody, CapRound))

	status, err := Status(ctx, store, round)
	require.NoError(t, err)
	for _, l := range RoundLedgers {
		assert.True(t, status[l], l)
	}

	removed, err := Revoke(ctx, store, admin, round, CapRound)
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = ResolveRound(ctx, store, round)
	assert.Error(t, err)
}

func TestRequireRejectsStranger(t *testing.T) {
	ctx := context.Background()
	store, err := sqldb.OpenMemory(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	_, err = Require(ctx, store, LedgerCustody, CapAdmin, stranger)
	var ue *UnauthorizedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, LedgerCustody, ue.Ledger)
	assert.Equal(t, CapAdmin, ue.Capability)

	// a round grant cannot be used to authorize others
	roundGrant := Grant{ledger: LedgerCustody, capability: CapRound, holder: round}
	_, err = Authorize(ctx, store, roundGrant, stranger, CapRound, time.Now())
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
