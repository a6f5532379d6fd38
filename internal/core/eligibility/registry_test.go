package eligibility

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/database"
)

var (
	alice = types.MustParseAddress("0x0000000000000000000000000000000000000011")
	bob   = types.MustParseAddress("0x0000000000000000000000000000000000000022")
	carol = types.MustParseAddress("0x0000000000000000000000000000000000000033")
)

func newRegistry(t *testing.T, backend string) *Registry {
	t.Helper()
	db, err := OpenStore(Config{Backend: backend, Path: filepath.Join(t.TempDir(), "kyc")})
	require.NoError(t, err)
	r := NewRegistry(db, nil, func() time.Time { return time.Unix(1_700_000_000, 0) })
	t.Cleanup(func() { r.Close() })
	return r
}

func TestAddRemove(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendPebble, BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			r := newRegistry(t, backend)

			ok, err := r.IsApproved(ctx, alice)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, r.Add(ctx, alice))
			assert.ErrorIs(t, r.Add(ctx, alice), ErrAlreadyApproved)
			assert.ErrorIs(t, r.Add(ctx, types.ZeroAddress), ErrZeroAddress)

			ok, err = r.IsApproved(ctx, alice)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, r.Remove(ctx, alice))
			assert.ErrorIs(t, r.Remove(ctx, alice), ErrNotApproved)

			ok, err = r.IsApproved(ctx, alice)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBatch(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, BackendMemory)

	require.NoError(t, r.Add(ctx, bob))
	added, err := r.BatchAdd(ctx, []types.Address{alice, bob, types.ZeroAddress, carol, alice})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	entries, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, alice, entries[0].Address)
	assert.Equal(t, int64(1_700_000_000), entries[0].ApprovedAt)

	removed, err := r.BatchRemove(ctx, []types.Address{alice, carol, carol})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err = r.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bob, entries[0].Address)
}

func TestUnknownBackend(t *testing.T) {
	_, err := OpenStore(Config{Backend: "bolt"})
	assert.ErrorIs(t, err, database.ErrUnknownBackend)
}
