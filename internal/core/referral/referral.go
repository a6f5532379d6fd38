// Package referral keeps the per-address record of referral bonuses.
package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

const (
	// DefaultBonusBps is the 5% bonus paid to each side of a referral.
	DefaultBonusBps uint64 = 500
	BpsDenominator  uint64 = 10_000
)

var ErrInvalidCredit = errors.New("invalid referral credit")

// Info is the record returned by getReferralInfo.
type Info struct {
	Address          types.Address `json:"address"`
	EarnedAsReferrer *types.Amount `json:"earned_as_referrer"`
	EarnedAsReferee  *types.Amount `json:"earned_as_referee"`
	ReferralCount    uint64        `json:"referral_count"`
}

// Bonus returns floor(base * bps / 10000).
func Bonus(base *types.Amount, bps uint64) *types.Amount {
	out, overflow := new(uint256.Int).MulOverflow(base, uint256.NewInt(bps))
	if overflow {
		// divide first when the product does not fit
		out = new(uint256.Int).Div(base, uint256.NewInt(BpsDenominator))
		return out.Mul(out, uint256.NewInt(bps))
	}
	return out.Div(out, uint256.NewInt(BpsDenominator))
}

// Ledger credits bonuses. It is stateless; rows live in the store.
type Ledger struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{logger: logger.With(zap.String("module", "referral"))}
}

func validate(addr types.Address, amount *types.Amount) error {
	if addr == types.ZeroAddress {
		return fmt.Errorf("%w: zero address", ErrInvalidCredit)
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: zero amount", ErrInvalidCredit)
	}
	return nil
}

// CreditReferee adds amount to what addr earned by being referred.
func (l *Ledger) CreditReferee(ctx context.Context, repos relationaldb.Repositories, grant access.Grant, addr types.Address, amount *types.Amount) error {
	if err := grant.Check(access.LedgerReferral, access.CapRound); err != nil {
		return err
	}
	if err := validate(addr, amount); err != nil {
		return err
	}
	row, err := repos.Referrals().Get(ctx, addr)
	if err != nil {
		return err
	}
	row.EarnedAsReferee = new(uint256.Int).Add(row.EarnedAsReferee, amount)
	return repos.Referrals().Save(ctx, row)
}

// CreditReferrer adds amount to what addr earned by referring others.
func (l *Ledger) CreditReferrer(ctx context.Context, repos relationaldb.Repositories, grant access.Grant, addr types.Address, amount *types.Amount) error {
	if err := grant.Check(access.LedgerReferral, access.CapRound); err != nil {
		return err
	}
	if err := validate(addr, amount); err != nil {
		return err
	}
	row, err := repos.Referrals().Get(ctx, addr)
	if err != nil {
		return err
	}
	row.EarnedAsReferrer = new(uint256.Int).Add(row.EarnedAsReferrer, amount)
	row.ReferralCount++
	l.logger.Debug("referrer credited", zap.String("referrer", addr.Hex()), zap.String("amount", amount.Dec()))
	return repos.Referrals().Save(ctx, row)
}

// Info reads the referral record of addr.
func (l *Ledger) Info(ctx context.Context, repos relationaldb.Repositories, addr types.Address) (*Info, error) {
	row, err := repos.Referrals().Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Info{
		Address:          addr,
		EarnedAsReferrer: row.EarnedAsReferrer,
		EarnedAsReferee:  row.EarnedAsReferee,
		ReferralCount:    row.ReferralCount,
	}, nil
}
