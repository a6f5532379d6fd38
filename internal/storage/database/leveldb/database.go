package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/LeJamon/goPresale/internal/storage/database"
)

type DB struct {
	db *leveldb.DB
}

// Open opens or creates a leveldb store at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb database %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return database.ErrKeyNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return database.ErrDBClosed
	}
	return err
}

var syncWrite = &opt.WriteOptions{Sync: true}

func (l *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err != nil {
		return nil, mapErr(err)
	}
	return val, nil
}

func (l *DB) Has(ctx context.Context, key []byte) (bool, error) {
	ok, err := l.db.Has(key, nil)
	return ok, mapErr(err)
}

func (l *DB) Write(ctx context.Context, key, value []byte) error {
	return mapErr(l.db.Put(key, value, syncWrite))
}

func (l *DB) Delete(ctx context.Context, key []byte) error {
	return mapErr(l.db.Delete(key, syncWrite))
}

func (l *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			batch.Put(op.Key, op.Value)
		case database.BatchDelete:
			batch.Delete(op.Key)
		default:
			return fmt.Errorf("%w: unknown operation type %d", database.ErrBatchOperationFailed, op.Type)
		}
	}
	return mapErr(l.db.Write(batch, syncWrite))
}

func (l *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	return &Iterator{iter: l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)}, nil
}

func (l *DB) Close() error {
	return mapErr(l.db.Close())
}

type Iterator struct {
	iter iterator.Iterator
}

func (it *Iterator) Next() bool { return it.iter.Next() }

func (it *Iterator) Key() []byte {
	return append([]byte(nil), it.iter.Key()...)
}

func (it *Iterator) Value() []byte {
	return append([]byte(nil), it.iter.Value()...)
}

func (it *Iterator) Error() error { return mapErr(it.iter.Error()) }

func (it *Iterator) Close() error {
	it.iter.Release()
	return nil
}
