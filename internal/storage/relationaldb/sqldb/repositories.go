package sqldb

import "github.com/LeJamon/goPresale/internal/storage/relationaldb"

// repositories binds one repository of each kind to an executor.
type repositories struct {
	system       *SystemRepository
	rounds       *RoundRepository
	purchases    *PurchaseRepository
	rateLimits   *RateLimitRepository
	referrals    *ReferralRepository
	vesting      *VestingRepository
	custody      *CustodyRepository
	capabilities *CapabilityRepository
	assets       *AssetRepository
	settlements  *SettlementRepository
}

func newRepositories(exec executor, d dialect, inTx bool) repositories {
	b := base{exec: exec, d: d, inTx: inTx}
	return repositories{
		system:       &SystemRepository{base: b},
		rounds:       &RoundRepository{base: b},
		purchases:    &PurchaseRepository{base: b},
		rateLimits:   &RateLimitRepository{base: b},
		referrals:    &ReferralRepository{base: b},
		vesting:      &VestingRepository{base: b},
		custody:      &CustodyRepository{base: b},
		capabilities: &CapabilityRepository{base: b},
		assets:       &AssetRepository{base: b},
		settlements:  &SettlementRepository{base: b},
	}
}

func (r repositories) System() relationaldb.SystemRepository           { return r.system }
func (r repositories) Rounds() relationaldb.RoundRepository            { return r.rounds }
func (r repositories) Purchases() relationaldb.PurchaseRepository      { return r.purchases }
func (r repositories) RateLimits() relationaldb.RateLimitRepository    { return r.rateLimits }
func (r repositories) Referrals() relationaldb.ReferralRepository      { return r.referrals }
func (r repositories) Vesting() relationaldb.VestingRepository         { return r.vesting }
func (r repositories) Custody() relationaldb.CustodyRepository         { return r.custody }
func (r repositories) Capabilities() relationaldb.CapabilityRepository { return r.capabilities }
func (r repositories) Assets() relationaldb.AssetRepository            { return r.assets }
func (r repositories) Settlements() relationaldb.SettlementRepository  { return r.settlements }
