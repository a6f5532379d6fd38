package sale

import (
	"time"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Phase is where the clock sits relative to a round's sale window.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

// RoundConfig is fixed when the round is created.
type RoundConfig struct {
	Name            string        `json:"name"`
	TokenPriceUSD   types.USD     `json:"token_price_usd"`
	HardCapUSD      types.USD     `json:"hard_cap_usd"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	CliffDuration   time.Duration `json:"cliff_duration"`
	VestingDuration time.Duration `json:"vesting_duration"`
	IsActive        bool          `json:"is_active"`
	// Oracle is the price feed reference; empty selects the engine default.
	Oracle string `json:"oracle,omitempty"`
}

// Validate enforces the creation invariants.
func (c RoundConfig) Validate() error {
	if !c.StartTime.Before(c.EndTime) {
		return invalid("start time %s must precede end time %s", c.StartTime.UTC(), c.EndTime.UTC())
	}
	if c.TokenPriceUSD == 0 {
		return invalid("token price must be positive")
	}
	if c.HardCapUSD == 0 {
		return invalid("hard cap must be positive")
	}
	if !c.HardCapUSD.Storable() || !c.TokenPriceUSD.Storable() {
		return invalid("usd values must fit a signed 64-bit column")
	}
	if c.CliffDuration < 0 || c.VestingDuration < 0 {
		return invalid("vesting durations must not be negative")
	}
	return nil
}

func configFromRow(r *relationaldb.RoundRow) RoundConfig {
	return RoundConfig{
		Name:            r.Name,
		TokenPriceUSD:   r.TokenPriceUSD,
		HardCapUSD:      r.HardCapUSD,
		StartTime:       time.Unix(r.StartTime, 0),
		EndTime:         time.Unix(r.EndTime, 0),
		CliffDuration:   time.Duration(r.CliffDuration) * time.Second,
		VestingDuration: time.Duration(r.VestingDuration) * time.Second,
		IsActive:        r.IsActive,
	}
}

// PhaseAt places now in the inclusive window [start, end].
func (c RoundConfig) PhaseAt(now time.Time) Phase {
	switch {
	case now.Before(c.StartTime):
		return PhasePending
	case now.After(c.EndTime):
		return PhaseEnded
	default:
		return PhaseActive
	}
}

// checkOpen applies the round-level purchase preconditions.
func (c RoundConfig) checkOpen(paused bool, now time.Time) error {
	switch c.PhaseAt(now) {
	case PhasePending:
		return ErrRoundNotStarted
	case PhaseEnded:
		return ErrRoundEnded
	}
	if paused {
		return ErrRoundPaused
	}
	if !c.IsActive {
		return ErrRoundInactive
	}
	return nil
}

// Round is the read model of a round.
type Round struct {
	Index           uint64        `json:"index"`
	Address         types.Address `json:"address"`
	Config          RoundConfig   `json:"config"`
	Phase           Phase         `json:"phase"`
	Paused          bool          `json:"paused"`
	Oracle          string        `json:"oracle"`
	TotalRaisedUSD  types.USD     `json:"total_raised_usd"`
	RemainingUSD    types.USD     `json:"remaining_usd"`
	TotalTokensSold *types.Amount `json:"total_tokens_sold"`
	SettlementCount uint64        `json:"settlement_count"`
	CreatedAt       int64         `json:"created_at"`
}

func roundView(r *relationaldb.RoundRow, now time.Time) *Round {
	cfg := configFromRow(r)
	cfg.Oracle = r.Oracle
	v := &Round{
		Index:           r.Index,
		Address:         r.Address,
		Config:          cfg,
		Phase:           cfg.PhaseAt(now),
		Paused:          r.Paused,
		Oracle:          r.Oracle,
		TotalRaisedUSD:  r.TotalRaisedUSD,
		TotalTokensSold: r.TotalTokensSold,
		SettlementCount: r.SettlementCount,
		CreatedAt:       r.CreatedAt,
	}
	if r.HardCapUSD > r.TotalRaisedUSD {
		v.RemainingUSD = r.HardCapUSD - r.TotalRaisedUSD
	}
	return v
}
