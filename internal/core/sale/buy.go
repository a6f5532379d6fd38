package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/referral"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/core/vesting"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// BuyRequest is one purchase. Asset is the zero address for the native
// currency, whose Amount is the value attached by the buyer.
type BuyRequest struct {
	Round    uint64        `json:"round"`
	Buyer    types.Address `json:"buyer"`
	Asset    types.Address `json:"asset"`
	Amount   *types.Amount `json:"amount"`
	Referrer types.Address `json:"referrer"`
}

// quote is everything computed before the transaction opens.
type quote struct {
	round      *cachedRound
	oracle     string
	asset      types.Asset
	usd        types.USD
	baseTokens *types.Amount
	referrer   types.Address
	bonus      *types.Amount
}

// BaseTokens returns usd * 10^18 / price, truncating.
func BaseTokens(usd, price types.USD) *types.Amount {
	out := new(uint256.Int).Mul(uint256.NewInt(uint64(usd)), types.Pow10(types.TokenDecimals))
	return out.Div(out, uint256.NewInt(uint64(price)))
}

// Buy settles a purchase. Every ledger write happens in one transaction;
// any failure leaves the store as it was.
func (e *Engine) Buy(ctx context.Context, req BuyRequest) (*relationaldb.SettlementRow, error) {
	start := time.Now()
	s, err := e.buy(ctx, req, start)
	if err != nil {
		err = classify(err)
		reason := Reason(err)
		e.Metrics.Rejected(reason, time.Since(start))
		e.logger.Warn("purchase rejected",
			zap.Uint64("round", req.Round),
			zap.String("buyer", req.Buyer.Hex()),
			zap.String("reason", reason),
			zap.Error(err))
		return nil, err
	}
	return s, nil
}

func (e *Engine) buy(ctx context.Context, req BuyRequest, start time.Time) (*relationaldb.SettlementRow, error) {
	if req.Buyer == types.ZeroAddress {
		return nil, invalid("zero buyer")
	}
	if req.Amount == nil || req.Amount.IsZero() {
		return nil, invalid("zero amount")
	}
	if _, err := e.System(ctx); err != nil {
		return nil, err
	}

	// the feed read happens before the round lock is taken
	q, err := e.quote(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock, err := e.Locker.Lock(ctx, fmt.Sprintf("round/%d", req.Round))
	if err != nil {
		return nil, fmt.Errorf("lock round %d: %w", req.Round, err)
	}
	defer unlock()

	var (
		settlement *relationaldb.SettlementRow
		row        *relationaldb.RoundRow
	)
	err = e.Store.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		var err error
		settlement, row, err = e.settle(ctx, tx, req, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("purchase settled",
		zap.Uint64("round", settlement.RoundIndex),
		zap.Uint64("sequence", settlement.Sequence),
		zap.String("buyer", settlement.Buyer.Hex()),
		zap.String("asset", q.asset.Symbol),
		zap.Stringer("usd", settlement.USDValue),
		zap.String("base_tokens", types.FormatUnits(settlement.BaseTokens, types.TokenDecimals)),
		zap.String("bonus_tokens", types.FormatUnits(settlement.BonusTokens, types.TokenDecimals)))
	raised, _ := row.TotalRaisedUSD.Decimal().Float64()
	sold, _ := decimal.NewFromBigInt(row.TotalTokensSold.ToBig(), -types.TokenDecimals).Float64()
	e.Metrics.Settled(row.Index, q.asset.Symbol, raised, sold, time.Since(start))
	if e.Publisher != nil {
		e.Publisher.PublishSettlement(settlement)
	}
	return settlement, nil
}

// quote runs the read-only steps: round window, eligibility, referrer
// validity, USD valuation and token amounts. Nothing here touches the
// transaction.
func (e *Engine) quote(ctx context.Context, req BuyRequest) (*quote, error) {
	round, err := e.roundConfig(ctx, req.Round)
	if err != nil {
		return nil, err
	}
	current, err := e.Store.Rounds().Get(ctx, req.Round)
	if err != nil {
		return nil, err
	}
	if err := round.config.checkOpen(current.Paused, e.Now()); err != nil {
		return nil, err
	}

	ok, err := e.Eligibility.IsApproved(ctx, req.Buyer)
	if err != nil {
		return nil, fmt.Errorf("eligibility lookup: %w", err)
	}
	if !ok {
		return nil, ErrNotEligible
	}

	asset, err := e.lookupAsset(req.Asset)
	if err != nil {
		return nil, err
	}
	usd, err := e.Prices.ToUSD(ctx, current.Oracle, asset, req.Amount)
	if err != nil {
		return nil, err
	}
	base := BaseTokens(usd, round.config.TokenPriceUSD)
	if base.IsZero() {
		return nil, invalid("purchase of %s buys no tokens at %s", usd, round.config.TokenPriceUSD)
	}

	q := &quote{round: round, oracle: current.Oracle, asset: asset, usd: usd, baseTokens: base, bonus: new(uint256.Int)}
	if e.validReferrer(ctx, req) {
		if bonus := referral.Bonus(base, e.cfg.ReferralBonusBps); !bonus.IsZero() {
			q.referrer = req.Referrer
			q.bonus = bonus
		}
	}
	return q, nil
}

// validReferrer ignores self-referral, the zero address and referrers
// without KYC. A lookup failure drops the bonus rather than the purchase.
func (e *Engine) validReferrer(ctx context.Context, req BuyRequest) bool {
	if req.Referrer == types.ZeroAddress || req.Referrer == req.Buyer {
		return false
	}
	ok, err := e.Eligibility.IsApproved(ctx, req.Referrer)
	if err != nil {
		e.logger.Warn("referrer lookup failed", zap.String("referrer", req.Referrer.Hex()), zap.Error(err))
		return false
	}
	return ok
}

func (e *Engine) settle(ctx context.Context, tx relationaldb.Repositories, req BuyRequest, q *quote) (*relationaldb.SettlementRow, *relationaldb.RoundRow, error) {
	now := e.Now()

	row, err := tx.Rounds().Get(ctx, req.Round)
	if err != nil {
		return nil, nil, err
	}
	if err := q.round.config.checkOpen(row.Paused, now); err != nil {
		return nil, nil, err
	}
	if row.Oracle != q.oracle {
		return nil, nil, fmt.Errorf("%w: oracle changed to %s while pricing", ErrPriceUnavailable, row.Oracle)
	}

	caps, err := access.ResolveRound(ctx, tx, row.Address)
	if err != nil {
		return nil, nil, err
	}

	if err := e.Limiter.CheckAndUpdate(ctx, tx, caps.RateLimiter, req.Buyer, q.usd); err != nil {
		return nil, nil, err
	}

	ok, err := tx.Rounds().AddRaised(ctx, req.Round, q.usd)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: raised %s of %s, purchase %s",
			ErrHardCapExceeded, row.TotalRaisedUSD, row.HardCapUSD, q.usd)
	}
	row.TotalRaisedUSD += q.usd

	if err := e.Custody.Deposit(ctx, tx, caps.Custody, req.Asset, req.Buyer, req.Amount); err != nil {
		return nil, nil, err
	}

	referred := q.referrer != types.ZeroAddress
	if referred {
		if err := e.Referrals.CreditReferee(ctx, tx, caps.Referral, req.Buyer, q.bonus); err != nil {
			return nil, nil, err
		}
		if err := e.Referrals.CreditReferrer(ctx, tx, caps.Referral, q.referrer, q.bonus); err != nil {
			return nil, nil, err
		}
	}

	buyerTotal := new(uint256.Int).Add(q.baseTokens, q.bonus)
	grant := vesting.GrantRequest{
		Beneficiary: req.Buyer,
		Amount:      buyerTotal,
		Start:       now,
		Cliff:       q.round.config.CliffDuration,
		Duration:    q.round.config.VestingDuration,
		RoundIndex:  req.Round,
	}
	if _, err := e.Vesting.Grant(ctx, tx, caps.Vesting, grant); err != nil {
		return nil, nil, err
	}
	if referred {
		grant.Beneficiary = q.referrer
		grant.Amount = q.bonus
		if _, err := e.Vesting.Grant(ctx, tx, caps.Vesting, grant); err != nil {
			return nil, nil, err
		}
	}

	if err := e.recordPurchase(ctx, tx, req.Round, req.Buyer, q.usd, q.baseTokens, q.bonus, true); err != nil {
		return nil, nil, err
	}
	if referred {
		if err := e.recordPurchase(ctx, tx, req.Round, q.referrer, 0, new(uint256.Int), q.bonus, false); err != nil {
			return nil, nil, err
		}
	}

	// q.bonus is zero without a referrer; with one it is paid twice
	sold := new(uint256.Int).Add(row.TotalTokensSold, buyerTotal)
	sold.Add(sold, q.bonus)
	if err := tx.Rounds().SetTokensSold(ctx, req.Round, sold); err != nil {
		return nil, nil, err
	}
	row.TotalTokensSold = sold

	seq, err := tx.Rounds().NextSettlementSeq(ctx, req.Round)
	if err != nil {
		return nil, nil, err
	}
	row.SettlementCount = seq

	settlement := &relationaldb.SettlementRow{
		ID:            uuid.NewString(),
		RoundIndex:    req.Round,
		Sequence:      seq,
		Buyer:         req.Buyer,
		PayAsset:      req.Asset,
		Amount:        req.Amount,
		USDValue:      q.usd,
		BaseTokens:    q.baseTokens,
		BonusTokens:   q.bonus,
		ReferrerBonus: q.bonus,
		Referrer:      q.referrer,
		Timestamp:     now.Unix(),
	}
	if !referred {
		settlement.ReferrerBonus = new(uint256.Int)
	}
	if err := tx.Settlements().Insert(ctx, settlement); err != nil {
		return nil, nil, err
	}
	return settlement, row, nil
}

// recordPurchase folds a purchase or a referrer bonus into the buyer's
// record for the round.
func (e *Engine) recordPurchase(ctx context.Context, tx relationaldb.Repositories, round uint64, buyer types.Address, usd types.USD, base, bonus *types.Amount, purchase bool) error {
	rec, err := tx.Purchases().Get(ctx, round, buyer)
	if err != nil {
		return err
	}
	contributed, ok := rec.ContributedUSD.Add(usd)
	if !ok {
		return invalid("contribution overflow for %s", buyer.Hex())
	}
	rec.ContributedUSD = contributed
	rec.BaseAllocation = new(uint256.Int).Add(rec.BaseAllocation, base)
	rec.BonusAllocation = new(uint256.Int).Add(rec.BonusAllocation, bonus)
	if purchase {
		rec.PurchaseCount++
	}
	return tx.Purchases().Upsert(ctx, rec)
}
