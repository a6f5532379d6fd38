package relationaldb

import (
	"context"

	"github.com/LeJamon/goPresale/internal/core/types"
)

// SystemState is the single bootstrap row written by Initialize.
type SystemState struct {
	Authority     types.Address `json:"authority"`
	Registry      types.Address `json:"registry"`
	CustodyVault  types.Address `json:"custody_vault"`
	VestingPool   types.Address `json:"vesting_pool"`
	SaleToken     types.Address `json:"sale_token"`
	TokenDecimals uint8         `json:"token_decimals"`
	InitializedAt int64         `json:"initialized_at"`
}

// RoundRow is the persisted form of a sale round.
type RoundRow struct {
	Index           uint64        `json:"index"`
	Address         types.Address `json:"address"`
	Name            string        `json:"name"`
	TokenPriceUSD   types.USD     `json:"token_price_usd"`
	HardCapUSD      types.USD     `json:"hard_cap_usd"`
	StartTime       int64         `json:"start_time"`
	EndTime         int64         `json:"end_time"`
	CliffDuration   int64         `json:"cliff_duration"`
	VestingDuration int64         `json:"vesting_duration"`
	IsActive        bool          `json:"is_active"`
	Paused          bool          `json:"paused"`
	Oracle          string        `json:"oracle"`
	TotalRaisedUSD  types.USD     `json:"total_raised_usd"`
	TotalTokensSold *types.Amount `json:"total_tokens_sold"`
	SettlementCount uint64        `json:"settlement_count"`
	CreatedAt       int64         `json:"created_at"`
}

// PurchaseRow is a buyer's cumulative position in one round.
type PurchaseRow struct {
	RoundIndex      uint64        `json:"round_index"`
	Buyer           types.Address `json:"buyer"`
	ContributedUSD  types.USD     `json:"contributed_usd"`
	BaseAllocation  *types.Amount `json:"base_allocation"`
	BonusAllocation *types.Amount `json:"bonus_allocation"`
	PurchaseCount   uint64        `json:"purchase_count"`
}

// RateLimitRow is the per-address limiter state.
type RateLimitRow struct {
	Address          types.Address `json:"address"`
	LastTxTime       int64         `json:"last_tx_time"`
	TxCountInWindow  uint64        `json:"tx_count_in_window"`
	WindowStart      int64         `json:"window_start"`
	DailySpentUSD    types.USD     `json:"daily_spent_usd"`
	DailyWindowStart int64         `json:"daily_window_start"`
}

// RateLimitConfigRow holds the global limiter parameters.
type RateLimitConfigRow struct {
	MinTimeBetweenTx int64     `json:"min_time_between_tx"`
	MaxTxPerPeriod   uint64    `json:"max_tx_per_period"`
	Period           int64     `json:"period"`
	MaxDailySpendUSD types.USD `json:"max_daily_spend_usd"`
}

// ReferralRow accumulates referral bonuses for an address.
type ReferralRow struct {
	Address          types.Address `json:"address"`
	EarnedAsReferrer *types.Amount `json:"earned_as_referrer"`
	EarnedAsReferee  *types.Amount `json:"earned_as_referee"`
	ReferralCount    uint64        `json:"referral_count"`
}

// VestingGrantRow is one independent vesting schedule.
type VestingGrantRow struct {
	ID              string        `json:"id"`
	Beneficiary     types.Address `json:"beneficiary"`
	RoundIndex      uint64        `json:"round_index"`
	TotalAmount     *types.Amount `json:"total_amount"`
	ClaimedAmount   *types.Amount `json:"claimed_amount"`
	StartTime       int64         `json:"start_time"`
	CliffDuration   int64         `json:"cliff_duration"`
	VestingDuration int64         `json:"vesting_duration"`
}

// CapabilityRow records that holder may act on ledger with capability.
type CapabilityRow struct {
	Ledger     string        `json:"ledger"`
	Capability string        `json:"capability"`
	Holder     types.Address `json:"holder"`
	GrantedAt  int64         `json:"granted_at"`
}

// SettlementRow is the audit record of a successful purchase.
type SettlementRow struct {
	ID            string        `json:"id"`
	RoundIndex    uint64        `json:"round_index"`
	Sequence      uint64        `json:"sequence"`
	Buyer         types.Address `json:"buyer"`
	PayAsset      types.Address `json:"pay_asset"`
	Amount        *types.Amount `json:"amount"`
	USDValue      types.USD     `json:"usd_value"`
	BaseTokens    *types.Amount `json:"base_tokens"`
	BonusTokens   *types.Amount `json:"bonus_tokens"`
	ReferrerBonus *types.Amount `json:"referrer_bonus"`
	Referrer      types.Address `json:"referrer"`
	Timestamp     int64         `json:"timestamp"`
}

// SettlementQuery pages through a round's settlements by sequence.
type SettlementQuery struct {
	RoundIndex uint64
	AfterSeq   uint64
	Limit      int
}

// SystemRepository stores the bootstrap record.
type SystemRepository interface {
	GetState(ctx context.Context) (*SystemState, error)
	SaveState(ctx context.Context, state *SystemState) error
}

// RoundRepository handles sale round rows.
type RoundRepository interface {
	Count(ctx context.Context) (uint64, error)
	Get(ctx context.Context, index uint64) (*RoundRow, error)
	List(ctx context.Context) ([]RoundRow, error)
	Insert(ctx context.Context, round *RoundRow) error
	SetPaused(ctx context.Context, index uint64, paused bool) error
	SetOracle(ctx context.Context, index uint64, oracle string) error
	// AddRaised increments total_raised_usd only if the hard cap holds and
	// reports whether the row was updated.
	AddRaised(ctx context.Context, index uint64, usd types.USD) (bool, error)
	SetTokensSold(ctx context.Context, index uint64, sold *types.Amount) error
	NextSettlementSeq(ctx context.Context, index uint64) (uint64, error)
}

// PurchaseRepository handles per-buyer purchase records.
type PurchaseRepository interface {
	Get(ctx context.Context, round uint64, buyer types.Address) (*PurchaseRow, error)
	Upsert(ctx context.Context, row *PurchaseRow) error
	ListByRound(ctx context.Context, round uint64) ([]PurchaseRow, error)
}

// RateLimitRepository handles limiter state and configuration.
type RateLimitRepository interface {
	GetConfig(ctx context.Context) (*RateLimitConfigRow, error)
	SaveConfig(ctx context.Context, cfg *RateLimitConfigRow) error
	// Get returns the zero row for unseen addresses.
	Get(ctx context.Context, addr types.Address) (*RateLimitRow, error)
	Save(ctx context.Context, row *RateLimitRow) error
	Delete(ctx context.Context, addr types.Address) error
}

// ReferralRepository handles referral earnings.
type ReferralRepository interface {
	Get(ctx context.Context, addr types.Address) (*ReferralRow, error)
	Save(ctx context.Context, row *ReferralRow) error
}

// VestingRepository handles vesting grants.
type VestingRepository interface {
	Insert(ctx context.Context, grant *VestingGrantRow) error
	ListByBeneficiary(ctx context.Context, addr types.Address) ([]VestingGrantRow, error)
	SetClaimed(ctx context.Context, id string, claimed *types.Amount) error
}

// CustodyRepository tracks the vault balance per asset.
type CustodyRepository interface {
	Balance(ctx context.Context, asset types.Address) (*types.Amount, error)
	SetBalance(ctx context.Context, asset types.Address, balance *types.Amount) error
	Balances(ctx context.Context) (map[types.Address]*types.Amount, error)
}

// CapabilityRepository stores ACL grants.
type CapabilityRepository interface {
	Has(ctx context.Context, ledger, capability string, holder types.Address) (bool, error)
	Grant(ctx context.Context, row *CapabilityRow) (bool, error)
	Revoke(ctx context.Context, ledger, capability string, holder types.Address) (bool, error)
	ListByHolder(ctx context.Context, holder types.Address) ([]CapabilityRow, error)
}

// AssetRepository is the asset book standing in for token contracts.
type AssetRepository interface {
	Balance(ctx context.Context, asset, owner types.Address) (*types.Amount, error)
	SetBalance(ctx context.Context, asset, owner types.Address, balance *types.Amount) error
	Allowance(ctx context.Context, asset, owner, spender types.Address) (*types.Amount, error)
	SetAllowance(ctx context.Context, asset, owner, spender types.Address, amount *types.Amount) error
}

// SettlementRepository appends and reads settlement records.
type SettlementRepository interface {
	Insert(ctx context.Context, row *SettlementRow) error
	List(ctx context.Context, q SettlementQuery) ([]SettlementRow, error)
	Count(ctx context.Context, round uint64) (uint64, error)
}

// Repositories gives access to every repository, either on the pool or
// bound to an open transaction. Reads made through a transaction lock the
// row they return on dialects that support row locks.
type Repositories interface {
	System() SystemRepository
	Rounds() RoundRepository
	Purchases() PurchaseRepository
	RateLimits() RateLimitRepository
	Referrals() ReferralRepository
	Vesting() VestingRepository
	Custody() CustodyRepository
	Capabilities() CapabilityRepository
	Assets() AssetRepository
	Settlements() SettlementRepository
}

// TransactionContext represents a database transaction context with repository access
type TransactionContext interface {
	Repositories

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RepositoryManager provides access to all repositories and transaction management
type RepositoryManager interface {
	Repositories

	// Connection management
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	// Transaction management
	WithTransaction(ctx context.Context, fn func(TransactionContext) error) error
}
