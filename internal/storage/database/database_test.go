package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goPresale/internal/storage/database"
	"github.com/LeJamon/goPresale/internal/storage/database/leveldb"
	"github.com/LeJamon/goPresale/internal/storage/database/memory"
	"github.com/LeJamon/goPresale/internal/storage/database/pebble"
)

func backends(t *testing.T) map[string]func() database.DB {
	return map[string]func() database.DB{
		"memory": func() database.DB { return memory.New() },
		"pebble": func() database.DB {
			db, err := pebble.Open(filepath.Join(t.TempDir(), "kv"))
			require.NoError(t, err)
			return db
		},
		"leveldb": func() database.DB {
			db, err := leveldb.Open(filepath.Join(t.TempDir(), "kv"))
			require.NoError(t, err)
			return db
		},
	}
}

func collect(t *testing.T, db database.DB, start, end []byte) []string {
	t.Helper()
	it, err := db.Iterator(context.Background(), start, end)
	require.NoError(t, err)
	defer it.Close()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	return keys
}

func TestBackends(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			db := open()
			defer db.Close()

			_, err := db.Read(ctx, []byte("missing"))
			assert.ErrorIs(t, err, database.ErrKeyNotFound)

			require.NoError(t, db.Write(ctx, []byte("a/1"), []byte("one")))
			got, err := db.Read(ctx, []byte("a/1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			ok, err := db.Has(ctx, []byte("a/1"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, db.Batch(ctx, []database.BatchOperation{
				database.Put([]byte("a/2"), []byte("two")),
				database.Put([]byte("a/3"), []byte("three")),
				database.Put([]byte("b/1"), []byte("other")),
				database.Del([]byte("a/1")),
			}))

			ok, err = db.Has(ctx, []byte("a/1"))
			require.NoError(t, err)
			assert.False(t, ok)

			prefix := []byte("a/")
			assert.Equal(t, []string{"a/2", "a/3"}, collect(t, db, prefix, database.PrefixEnd(prefix)))
			assert.Equal(t, []string{"a/2", "a/3", "b/1"}, collect(t, db, nil, nil))

			require.NoError(t, db.Delete(ctx, []byte("b/1")))
			assert.Equal(t, []string{"a/2", "a/3"}, collect(t, db, nil, nil))
		})
	}
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("b"), database.PrefixEnd([]byte("a")))
	assert.Equal(t, []byte{0x01}, database.PrefixEnd([]byte{0x00, 0xff}))
	assert.Nil(t, database.PrefixEnd([]byte{0xff, 0xff}))
}
