package sale

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// CreateRound stores a new round at the next index. The round address is
// derived from the registry address and the index.
func (e *Engine) CreateRound(ctx context.Context, cfg RoundConfig) (*Round, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Oracle == "" {
		cfg.Oracle = e.cfg.DefaultOracle
	}
	if cfg.Oracle != "" {
		if _, err := e.Prices.Resolve(cfg.Oracle); err != nil {
			return nil, classify(err)
		}
	}

	now := e.Now()
	var row *relationaldb.RoundRow
	err := e.asAdmin(ctx, access.LedgerRegistry, func(tx relationaldb.TransactionContext, _ access.Grant, state *relationaldb.SystemState) error {
		index, err := tx.Rounds().Count(ctx)
		if err != nil {
			return err
		}
		name := cfg.Name
		if name == "" {
			name = fmt.Sprintf("Round %d", index+1)
		}
		row = &relationaldb.RoundRow{
			Index:           index,
			Address:         types.DeriveAddress(state.Registry, index),
			Name:            name,
			TokenPriceUSD:   cfg.TokenPriceUSD,
			HardCapUSD:      cfg.HardCapUSD,
			StartTime:       cfg.StartTime.Unix(),
			EndTime:         cfg.EndTime.Unix(),
			CliffDuration:   int64(cfg.CliffDuration.Seconds()),
			VestingDuration: int64(cfg.VestingDuration.Seconds()),
			IsActive:        cfg.IsActive,
			Oracle:          cfg.Oracle,
			TotalTokensSold: new(uint256.Int),
			CreatedAt:       now.Unix(),
		}
		return tx.Rounds().Insert(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	e.cacheRound(row)
	e.logger.Info("round created",
		zap.Uint64("index", row.Index),
		zap.String("address", row.Address.Hex()),
		zap.String("name", row.Name),
		zap.Stringer("price_usd", row.TokenPriceUSD),
		zap.Stringer("hard_cap_usd", row.HardCapUSD))
	return roundView(row, now), nil
}

func (e *Engine) cacheRound(row *relationaldb.RoundRow) *cachedRound {
	c := &cachedRound{index: row.Index, address: row.Address, config: configFromRow(row)}
	e.rounds.Add(c)
	return c
}

// roundConfig returns the immutable configuration of a round.
func (e *Engine) roundConfig(ctx context.Context, index uint64) (*cachedRound, error) {
	if c, ok := e.rounds.Get(index); ok {
		return c, nil
	}
	row, err := e.Store.Rounds().Get(ctx, index)
	if err != nil {
		return nil, err
	}
	return e.cacheRound(row), nil
}

// GetRound returns the current state of a round.
func (e *Engine) GetRound(ctx context.Context, index uint64) (*Round, error) {
	row, err := e.Store.Rounds().Get(ctx, index)
	if err != nil {
		return nil, err
	}
	e.cacheRound(row)
	return roundView(row, e.Now()), nil
}

// RoundByAddress resolves a round from its derived address.
func (e *Engine) RoundByAddress(ctx context.Context, addr types.Address) (*Round, error) {
	if c, ok := e.rounds.GetByAddress(addr); ok {
		return e.GetRound(ctx, c.index)
	}
	rows, err := e.Store.Rounds().List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		e.cacheRound(&rows[i])
		if rows[i].Address == addr {
			return roundView(&rows[i], e.Now()), nil
		}
	}
	return nil, relationaldb.NewNotFoundError("round_by_address", "round").WithDetail("address", addr.Hex())
}

// ListRounds returns every round in index order.
func (e *Engine) ListRounds(ctx context.Context) ([]*Round, error) {
	rows, err := e.Store.Rounds().List(ctx)
	if err != nil {
		return nil, err
	}
	now := e.Now()
	out := make([]*Round, len(rows))
	for i := range rows {
		out[i] = roundView(&rows[i], now)
	}
	return out, nil
}

func (e *Engine) RoundCount(ctx context.Context) (uint64, error) {
	return e.Store.Rounds().Count(ctx)
}

// Pause stops purchases in a round.
func (e *Engine) Pause(ctx context.Context, index uint64) error {
	return e.setPaused(ctx, index, true)
}

// Unpause resumes purchases in a round.
func (e *Engine) Unpause(ctx context.Context, index uint64) error {
	return e.setPaused(ctx, index, false)
}

func (e *Engine) setPaused(ctx context.Context, index uint64, paused bool) error {
	err := e.asAdmin(ctx, access.LedgerRegistry, func(tx relationaldb.TransactionContext, _ access.Grant, _ *relationaldb.SystemState) error {
		return tx.Rounds().SetPaused(ctx, index, paused)
	})
	if err == nil {
		e.logger.Info("round pause changed", zap.Uint64("index", index), zap.Bool("paused", paused))
	}
	return err
}

// UpdateOracle points a round at another price feed. The feed must answer
// a valid price before it is accepted.
func (e *Engine) UpdateOracle(ctx context.Context, index uint64, oracle string) error {
	if oracle == "" {
		return invalid("oracle reference is required")
	}
	if _, err := e.Prices.Latest(ctx, oracle); err != nil {
		return classify(err)
	}
	err := e.asAdmin(ctx, access.LedgerRegistry, func(tx relationaldb.TransactionContext, _ access.Grant, _ *relationaldb.SystemState) error {
		return tx.Rounds().SetOracle(ctx, index, oracle)
	})
	if err == nil {
		e.logger.Info("round oracle updated", zap.Uint64("index", index), zap.String("oracle", oracle))
	}
	return err
}

// AuthorizeRound grants the round capability on the four round ledgers in
// one transaction. Existing grants are kept, so repeating the call is
// harmless.
func (e *Engine) AuthorizeRound(ctx context.Context, index uint64) (access.RoundCapabilities, error) {
	var caps access.RoundCapabilities
	err := e.asAdmin(ctx, access.LedgerRegistry, func(tx relationaldb.TransactionContext, _ access.Grant, state *relationaldb.SystemState) error {
		round, err := tx.Rounds().Get(ctx, index)
		if err != nil {
			return err
		}
		now := e.Now()
		for _, ledger := range access.RoundLedgers {
			admin, err := access.Require(ctx, tx, ledger, access.CapAdmin, state.Registry)
			if err != nil {
				return err
			}
			if _, err := access.Authorize(ctx, tx, admin, round.Address, access.CapRound, now); err != nil {
				return err
			}
		}
		caps, err = access.ResolveRound(ctx, tx, round.Address)
		return err
	})
	if err != nil {
		return access.RoundCapabilities{}, err
	}
	e.logger.Info("round authorized", zap.Uint64("index", index))
	return caps, nil
}

// RevokeRound removes the round capability from the four round ledgers.
func (e *Engine) RevokeRound(ctx context.Context, index uint64) error {
	err := e.asAdmin(ctx, access.LedgerRegistry, func(tx relationaldb.TransactionContext, _ access.Grant, state *relationaldb.SystemState) error {
		round, err := tx.Rounds().Get(ctx, index)
		if err != nil {
			return err
		}
		for _, ledger := range access.RoundLedgers {
			admin, err := access.Require(ctx, tx, ledger, access.CapAdmin, state.Registry)
			if err != nil {
				return err
			}
			if _, err := access.Revoke(ctx, tx, admin, round.Address, access.CapRound); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		e.logger.Info("round revoked", zap.Uint64("index", index))
	}
	return err
}

// RoundCapabilities reports, per round ledger, whether the round holds the
// round capability.
func (e *Engine) RoundCapabilities(ctx context.Context, index uint64) (map[access.Ledger]bool, error) {
	c, err := e.roundConfig(ctx, index)
	if err != nil {
		return nil, err
	}
	return access.Status(ctx, e.Store, c.address)
}
