// Package eligibility is the KYC allow-list consulted before every
// purchase and every referral bonus.
package eligibility

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/database"
	"github.com/LeJamon/goPresale/internal/storage/database/leveldb"
	"github.com/LeJamon/goPresale/internal/storage/database/memory"
	"github.com/LeJamon/goPresale/internal/storage/database/pebble"
)

var (
	ErrZeroAddress     = errors.New("zero address")
	ErrAlreadyApproved = errors.New("address already approved")
	ErrNotApproved     = errors.New("address not approved")
)

const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

var keyPrefix = []byte("kyc/")

// Config selects the key-value backend.
type Config struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// OpenStore opens the configured backend.
func OpenStore(cfg Config) (database.DB, error) {
	switch cfg.Backend {
	case BackendPebble, "":
		return pebble.Open(cfg.Path)
	case BackendLevelDB:
		return leveldb.Open(cfg.Path)
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", database.ErrUnknownBackend, cfg.Backend)
	}
}

// Entry is one approved address.
type Entry struct {
	Address    types.Address `json:"address"`
	ApprovedAt int64         `json:"approved_at"`
}

// Registry stores approved addresses keyed by address bytes.
type Registry struct {
	db     database.DB
	logger *zap.Logger
	now    func() time.Time

	// serializes read-modify-write on the store
	mu sync.Mutex
}

func NewRegistry(db database.DB, logger *zap.Logger, now func() time.Time) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{db: db, logger: logger.With(zap.String("module", "eligibility")), now: now}
}

func key(addr types.Address) []byte {
	return append(append(make([]byte, 0, len(keyPrefix)+len(addr)), keyPrefix...), addr.Bytes()...)
}

func (r *Registry) stamp() []byte {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(r.now().Unix()))
	return v[:]
}

// IsApproved reports whether addr passed KYC.
func (r *Registry) IsApproved(ctx context.Context, addr types.Address) (bool, error) {
	if addr == types.ZeroAddress {
		return false, nil
	}
	return r.db.Has(ctx, key(addr))
}

// Add approves addr.
func (r *Registry) Add(ctx context.Context, addr types.Address) error {
	if addr == types.ZeroAddress {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.db.Has(ctx, key(addr))
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrAlreadyApproved, addr.Hex())
	}
	if err := r.db.Write(ctx, key(addr), r.stamp()); err != nil {
		return err
	}
	r.logger.Info("address approved", zap.String("address", addr.Hex()))
	return nil
}

// Remove withdraws approval from addr.
func (r *Registry) Remove(ctx context.Context, addr types.Address) error {
	if addr == types.ZeroAddress {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.db.Has(ctx, key(addr))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotApproved, addr.Hex())
	}
	if err := r.db.Delete(ctx, key(addr)); err != nil {
		return err
	}
	r.logger.Info("address removed", zap.String("address", addr.Hex()))
	return nil
}

// BatchAdd approves every new address in one atomic write and returns how
// many were added. Zero and already approved addresses are skipped.
func (r *Registry) BatchAdd(ctx context.Context, addrs []types.Address) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := r.stamp()
	seen := make(map[types.Address]struct{}, len(addrs))
	ops := make([]database.BatchOperation, 0, len(addrs))
	for _, addr := range addrs {
		if _, dup := seen[addr]; dup || addr == types.ZeroAddress {
			continue
		}
		seen[addr] = struct{}{}
		ok, err := r.db.Has(ctx, key(addr))
		if err != nil {
			return 0, err
		}
		if !ok {
			ops = append(ops, database.Put(key(addr), stamp))
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := r.db.Batch(ctx, ops); err != nil {
		return 0, err
	}
	r.logger.Info("addresses approved", zap.Int("count", len(ops)))
	return len(ops), nil
}

// BatchRemove withdraws approval from every listed address that holds it.
func (r *Registry) BatchRemove(ctx context.Context, addrs []types.Address) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[types.Address]struct{}, len(addrs))
	ops := make([]database.BatchOperation, 0, len(addrs))
	for _, addr := range addrs {
		if _, dup := seen[addr]; dup || addr == types.ZeroAddress {
			continue
		}
		seen[addr] = struct{}{}
		ok, err := r.db.Has(ctx, key(addr))
		if err != nil {
			return 0, err
		}
		if ok {
			ops = append(ops, database.Del(key(addr)))
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := r.db.Batch(ctx, ops); err != nil {
		return 0, err
	}
	r.logger.Info("addresses removed", zap.Int("count", len(ops)))
	return len(ops), nil
}

// List returns every approved address in key order.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	it, err := r.db.Iterator(ctx, keyPrefix, database.PrefixEnd(keyPrefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Entry
	for it.Next() {
		k, v := it.Key(), it.Value()
		if len(k) != len(keyPrefix)+types.AddressLength || len(v) != 8 {
			continue
		}
		out = append(out, Entry{
			Address:    types.BytesToAddress(k[len(keyPrefix):]),
			ApprovedAt: int64(binary.BigEndian.Uint64(v)),
		})
	}
	return out, it.Error()
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.db.Close()
}
