package pebble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/LeJamon/goPresale/internal/storage/database"
)

type DB struct {
	mu sync.RWMutex
	db *pebble.DB
}

// Open opens or creates a pebble store at path.
func Open(path string) (*DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

func (p *DB) handle() (*pebble.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, database.ErrDBClosed
	}
	return p.db, nil
}

func (p *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	db, err := p.handle()
	if err != nil {
		return nil, err
	}

	val, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, database.ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	// Copy the value out, it is only valid until closer runs
	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	return valCopy, nil
}

func (p *DB) Has(ctx context.Context, key []byte) (bool, error) {
	_, err := p.Read(ctx, key)
	if errors.Is(err, database.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *DB) Write(ctx context.Context, key, value []byte) error {
	db, err := p.handle()
	if err != nil {
		return err
	}
	return db.Set(key, value, pebble.Sync)
}

func (p *DB) Delete(ctx context.Context, key []byte) error {
	db, err := p.handle()
	if err != nil {
		return err
	}
	return db.Delete(key, pebble.Sync)
}

func (p *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	db, err := p.handle()
	if err != nil {
		return err
	}

	batch := db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return err
			}
		case database.BatchDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown operation type %d", database.ErrBatchOperationFailed, op.Type)
		}
	}

	return batch.Commit(pebble.Sync)
}

func (p *DB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

type Iterator struct {
	iter    *pebble.Iterator
	started bool
	err     error
}

func (p *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	db, err := p.handle()
	if err != nil {
		return nil, err
	}

	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, err
	}
	return &Iterator{iter: iter}, nil
}

func (it *Iterator) Next() bool {
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *Iterator) Key() []byte {
	return append([]byte(nil), it.iter.Key()...)
}

func (it *Iterator) Value() []byte {
	return append([]byte(nil), it.iter.Value()...)
}

func (it *Iterator) Error() error {
	if err := it.iter.Error(); err != nil {
		return err
	}
	return it.err
}

func (it *Iterator) Close() error {
	return it.iter.Close()
}
