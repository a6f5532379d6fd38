// Package sale settles presale purchases. A purchase moves through the
// eligibility registry, the price feed, the rate limiter, the round's hard
// cap, custody, the referral ledger and the vesting ledger inside a single
// store transaction, so either every ledger records it or none does.
package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/assets"
	"github.com/LeJamon/goPresale/internal/core/custody"
	"github.com/LeJamon/goPresale/internal/core/pricing"
	"github.com/LeJamon/goPresale/internal/core/ratelimit"
	"github.com/LeJamon/goPresale/internal/core/referral"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/core/vesting"
	"github.com/LeJamon/goPresale/internal/lock"
	"github.com/LeJamon/goPresale/internal/metrics"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Nonces under the authority for the system addresses.
const (
	nonceRegistry uint64 = iota
	nonceCustody
	nonceVestingPool
)

// Eligibility answers whether an address passed KYC.
type Eligibility interface {
	IsApproved(ctx context.Context, addr types.Address) (bool, error)
}

// Publisher receives every committed settlement.
type Publisher interface {
	PublishSettlement(s *relationaldb.SettlementRow)
}

// Config holds engine parameters.
type Config struct {
	ReferralBonusBps uint64
	DefaultOracle    string
	RoundCacheSize   int
}

// Deps are the collaborators the engine settles against.
type Deps struct {
	Store       relationaldb.RepositoryManager
	Eligibility Eligibility
	Prices      *pricing.Resolver
	Assets      *types.AssetTable
	Locker      lock.Locker
	Book        *assets.Book
	Limiter     *ratelimit.Limiter
	Referrals   *referral.Ledger
	Vesting     *vesting.Ledger
	Custody     *custody.Custody
	Metrics     *metrics.Metrics
	Publisher   Publisher
	Logger      *zap.Logger
	Now         func() time.Time
}

type Engine struct {
	cfg Config
	Deps

	logger *zap.Logger
	rounds *roundCache
}

func New(cfg Config, d Deps) (*Engine, error) {
	if d.Store == nil || d.Eligibility == nil || d.Prices == nil || d.Assets == nil {
		return nil, errors.New("sale engine: store, eligibility, prices and assets are required")
	}
	if cfg.ReferralBonusBps == 0 {
		cfg.ReferralBonusBps = referral.DefaultBonusBps
	}
	if cfg.ReferralBonusBps > referral.BpsDenominator {
		return nil, invalid("referral bonus %d bps exceeds 100%%", cfg.ReferralBonusBps)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Locker == nil {
		d.Locker = lock.NewLocal()
	}
	if d.Book == nil {
		d.Book = assets.NewBook(d.Logger)
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.New(d.Logger, d.Now)
	}
	if d.Referrals == nil {
		d.Referrals = referral.New(d.Logger)
	}
	if d.Vesting == nil {
		d.Vesting = vesting.New(d.Book, d.Logger, d.Now)
	}
	if d.Custody == nil {
		d.Custody = custody.New(d.Book, d.Logger)
	}
	rounds, err := newRoundCache(cfg.RoundCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		Deps:   d,
		logger: d.Logger.With(zap.String("module", "sale")),
		rounds: rounds,
	}, nil
}

// InitParams configure the one-time bootstrap.
type InitParams struct {
	Authority types.Address
	SaleToken types.Address
	RateLimit ratelimit.Config
}

// Initialize writes the system record, derives the registry, vault and
// vesting pool addresses, and grants admin rights: the authority on every
// ledger, the registry on the four round ledgers. It runs once.
func (e *Engine) Initialize(ctx context.Context, p InitParams) (*relationaldb.SystemState, error) {
	if p.Authority == types.ZeroAddress || p.SaleToken == types.ZeroAddress {
		return nil, invalid("authority and sale token are required")
	}
	if err := p.RateLimit.Validate(); err != nil {
		return nil, classify(err)
	}

	now := e.Now()
	state := &relationaldb.SystemState{
		Authority:     p.Authority,
		Registry:      types.DeriveAddress(p.Authority, nonceRegistry),
		CustodyVault:  types.DeriveAddress(p.Authority, nonceCustody),
		VestingPool:   types.DeriveAddress(p.Authority, nonceVestingPool),
		SaleToken:     p.SaleToken,
		TokenDecimals: types.TokenDecimals,
		InitializedAt: now.Unix(),
	}

	err := e.Store.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		if _, err := tx.System().GetState(ctx); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, relationaldb.ErrSystemNotFound) {
			return err
		}
		if err := tx.System().SaveState(ctx, state); err != nil {
			if errors.Is(err, relationaldb.ErrDuplicateEntry) {
				return ErrAlreadyInitialized
			}
			return err
		}
		for _, ledger := range append([]access.Ledger{access.LedgerRegistry}, access.RoundLedgers...) {
			if err := access.Bootstrap(ctx, tx, ledger, p.Authority, now); err != nil {
				return err
			}
		}
		for _, ledger := range access.RoundLedgers {
			if err := access.Bootstrap(ctx, tx, ledger, state.Registry, now); err != nil {
				return err
			}
		}
		return e.Limiter.Initialize(ctx, tx, p.RateLimit)
	})
	if err != nil {
		return nil, classify(err)
	}

	e.bind(state)
	e.logger.Info("system initialized",
		zap.String("authority", state.Authority.Hex()),
		zap.String("registry", state.Registry.Hex()),
		zap.String("custody", state.CustodyVault.Hex()),
		zap.String("vesting_pool", state.VestingPool.Hex()))
	return state, nil
}

// Open binds the ledgers to an existing system record. It is not an error
// to open an uninitialized store.
func (e *Engine) Open(ctx context.Context) error {
	state, err := e.Store.System().GetState(ctx)
	if errors.Is(err, relationaldb.ErrSystemNotFound) {
		e.logger.Warn("store is not initialized; run init before selling")
		return nil
	}
	if err != nil {
		return err
	}
	e.bind(state)
	return nil
}

func (e *Engine) bind(state *relationaldb.SystemState) {
	e.Custody.Bind(state.CustodyVault)
	e.Vesting.Bind(state.VestingPool, state.SaleToken)
}

// System returns the bootstrap record or ErrNotInitialized.
func (e *Engine) System(ctx context.Context) (*relationaldb.SystemState, error) {
	return systemState(ctx, e.Store)
}

func systemState(ctx context.Context, repos relationaldb.Repositories) (*relationaldb.SystemState, error) {
	state, err := repos.System().GetState(ctx)
	if errors.Is(err, relationaldb.ErrSystemNotFound) {
		return nil, ErrNotInitialized
	}
	return state, err
}

// asAdmin runs fn in a transaction holding the authority's admin grant on
// ledger.
func (e *Engine) asAdmin(ctx context.Context, ledger access.Ledger, fn func(relationaldb.TransactionContext, access.Grant, *relationaldb.SystemState) error) error {
	err := e.Store.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		state, err := systemState(ctx, tx)
		if err != nil {
			return err
		}
		grant, err := access.Require(ctx, tx, ledger, access.CapAdmin, state.Authority)
		if err != nil {
			return err
		}
		return fn(tx, grant, state)
	})
	return classify(err)
}

func (e *Engine) lookupAsset(addr types.Address) (types.Asset, error) {
	a, ok := e.Assets.ByAddress(addr)
	if !ok {
		return types.Asset{}, &Error{Kind: ErrInvalidConfig, Err: fmt.Errorf("%w: %s", pricing.ErrUnknownAsset, addr.Hex())}
	}
	return a, nil
}
