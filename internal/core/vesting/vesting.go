// Package vesting locks purchased allocations and releases them linearly
// after a cliff. Every purchase creates an independent grant; an address's
// releasable amount is the sum over its grants.
package vesting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/assets"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

var (
	ErrNothingToClaim = errors.New("nothing to claim")
	ErrInvalidGrant   = errors.New("invalid vesting grant")
	ErrUnbound        = errors.New("vesting pool not bound")
)

// Schedule is the curve parameters of one grant.
type Schedule struct {
	Total    *types.Amount
	Claimed  *types.Amount
	Start    int64
	Cliff    int64
	Duration int64
}

// Vested returns the amount unlocked at now: nothing before start+cliff,
// then linear over Duration seconds, capped at Total.
func (s Schedule) Vested(now int64) *types.Amount {
	unlock := s.Start + s.Cliff
	if now < unlock {
		return new(uint256.Int)
	}
	elapsed := now - unlock
	if s.Duration <= 0 || elapsed >= s.Duration {
		return new(uint256.Int).Set(s.Total)
	}
	out, overflow := new(uint256.Int).MulOverflow(s.Total, uint256.NewInt(uint64(elapsed)))
	if overflow {
		out = new(uint256.Int).Div(s.Total, uint256.NewInt(uint64(s.Duration)))
		return out.Mul(out, uint256.NewInt(uint64(elapsed)))
	}
	return out.Div(out, uint256.NewInt(uint64(s.Duration)))
}

// Releasable returns what can be claimed at now.
func (s Schedule) Releasable(now int64) *types.Amount {
	vested := s.Vested(now)
	if vested.Lt(s.Claimed) {
		return new(uint256.Int)
	}
	return vested.Sub(vested, s.Claimed)
}

func scheduleOf(g *relationaldb.VestingGrantRow) Schedule {
	return Schedule{
		Total:    g.TotalAmount,
		Claimed:  g.ClaimedAmount,
		Start:    g.StartTime,
		Cliff:    g.CliffDuration,
		Duration: g.VestingDuration,
	}
}

// GrantInfo is one grant as reported to clients.
type GrantInfo struct {
	ID              string        `json:"id"`
	RoundIndex      uint64        `json:"round_index"`
	TotalAmount     *types.Amount `json:"total_amount"`
	ClaimedAmount   *types.Amount `json:"claimed_amount"`
	Releasable      *types.Amount `json:"releasable"`
	StartTime       int64         `json:"start_time"`
	CliffDuration   int64         `json:"cliff_duration"`
	VestingDuration int64         `json:"vesting_duration"`
}

// Summary aggregates every grant of an address.
type Summary struct {
	Beneficiary types.Address `json:"beneficiary"`
	Total       *types.Amount `json:"total"`
	Claimed     *types.Amount `json:"claimed"`
	Releasable  *types.Amount `json:"releasable"`
	Locked      *types.Amount `json:"locked"`
	Grants      []GrantInfo   `json:"grants"`
}

// Ledger registers grants and pays claims out of the vesting pool.
type Ledger struct {
	book   *assets.Book
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	pool  types.Address
	token types.Address
}

func New(book *assets.Book, logger *zap.Logger, now func() time.Time) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{book: book, logger: logger.With(zap.String("module", "vesting")), now: now}
}

// Bind sets the pool that funds claims and the token it pays in.
func (l *Ledger) Bind(pool, token types.Address) {
	l.mu.Lock()
	l.pool, l.token = pool, token
	l.mu.Unlock()
}

func (l *Ledger) bound() (types.Address, types.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.pool == types.ZeroAddress {
		return types.ZeroAddress, types.ZeroAddress, ErrUnbound
	}
	return l.pool, l.token, nil
}

// GrantRequest describes a new grant.
type GrantRequest struct {
	Beneficiary types.Address
	Amount      *types.Amount
	Start       time.Time
	Cliff       time.Duration
	Duration    time.Duration
	RoundIndex  uint64
}

// Grant records a new schedule for the beneficiary and returns its id. The
// granted tokens are issued into the pool so every grant is backed.
func (l *Ledger) Grant(ctx context.Context, repos relationaldb.Repositories, grant access.Grant, req GrantRequest) (string, error) {
	if err := grant.Check(access.LedgerVesting, access.CapRound); err != nil {
		return "", err
	}
	pool, token, err := l.bound()
	if err != nil {
		return "", err
	}
	if req.Beneficiary == types.ZeroAddress {
		return "", fmt.Errorf("%w: zero beneficiary", ErrInvalidGrant)
	}
	if req.Amount == nil || req.Amount.IsZero() {
		return "", fmt.Errorf("%w: zero amount", ErrInvalidGrant)
	}
	if req.Cliff < 0 || req.Duration < 0 {
		return "", fmt.Errorf("%w: negative duration", ErrInvalidGrant)
	}

	row := &relationaldb.VestingGrantRow{
		ID:              uuid.NewString(),
		Beneficiary:     req.Beneficiary,
		RoundIndex:      req.RoundIndex,
		TotalAmount:     req.Amount,
		ClaimedAmount:   new(uint256.Int),
		StartTime:       req.Start.Unix(),
		CliffDuration:   int64(req.Cliff / time.Second),
		VestingDuration: int64(req.Duration / time.Second),
	}
	if err := repos.Vesting().Insert(ctx, row); err != nil {
		return "", err
	}
	if err := l.book.Credit(ctx, repos, token, pool, req.Amount); err != nil {
		return "", fmt.Errorf("fund vesting pool: %w", err)
	}
	return row.ID, nil
}

// Releasable sums what addr can claim now.
func (l *Ledger) Releasable(ctx context.Context, repos relationaldb.Repositories, addr types.Address) (*types.Amount, error) {
	grants, err := repos.Vesting().ListByBeneficiary(ctx, addr)
	if err != nil {
		return nil, err
	}
	now := l.now().Unix()
	total := new(uint256.Int)
	for i := range grants {
		total.Add(total, scheduleOf(&grants[i]).Releasable(now))
	}
	return total, nil
}

// Claim pays every grant's releasable amount to addr.
func (l *Ledger) Claim(ctx context.Context, repos relationaldb.Repositories, addr types.Address) (*types.Amount, error) {
	pool, token, err := l.bound()
	if err != nil {
		return nil, err
	}
	grants, err := repos.Vesting().ListByBeneficiary(ctx, addr)
	if err != nil {
		return nil, err
	}

	now := l.now().Unix()
	total := new(uint256.Int)
	for i := range grants {
		g := &grants[i]
		due := scheduleOf(g).Releasable(now)
		if due.IsZero() {
			continue
		}
		claimed := new(uint256.Int).Add(g.ClaimedAmount, due)
		if err := repos.Vesting().SetClaimed(ctx, g.ID, claimed); err != nil {
			return nil, err
		}
		total.Add(total, due)
	}
	if total.IsZero() {
		return nil, ErrNothingToClaim
	}
	if err := l.book.Transfer(ctx, repos, token, pool, addr, total); err != nil {
		return nil, fmt.Errorf("pay vesting claim: %w", err)
	}
	l.logger.Info("vesting claimed", zap.String("beneficiary", addr.Hex()), zap.String("amount", total.Dec()))
	return total, nil
}

// Summary reports every grant of addr.
func (l *Ledger) Summary(ctx context.Context, repos relationaldb.Repositories, addr types.Address) (*Summary, error) {
	grants, err := repos.Vesting().ListByBeneficiary(ctx, addr)
	if err != nil {
		return nil, err
	}
	now := l.now().Unix()
	s := &Summary{
		Beneficiary: addr,
		Total:       new(uint256.Int),
		Claimed:     new(uint256.Int),
		Releasable:  new(uint256.Int),
		Locked:      new(uint256.Int),
		Grants:      make([]GrantInfo, 0, len(grants)),
	}
	for i := range grants {
		g := &grants[i]
		sched := scheduleOf(g)
		releasable := sched.Releasable(now)
		s.Total.Add(s.Total, g.TotalAmount)
		s.Claimed.Add(s.Claimed, g.ClaimedAmount)
		s.Releasable.Add(s.Releasable, releasable)
		s.Grants = append(s.Grants, GrantInfo{
			ID:              g.ID,
			RoundIndex:      g.RoundIndex,
			TotalAmount:     g.TotalAmount,
			ClaimedAmount:   g.ClaimedAmount,
			Releasable:      releasable,
			StartTime:       g.StartTime,
			CliffDuration:   g.CliffDuration,
			VestingDuration: g.VestingDuration,
		})
	}
	s.Locked.Sub(s.Total, s.Claimed)
	s.Locked.Sub(s.Locked, s.Releasable)
	return s, nil
}
