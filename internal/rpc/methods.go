package rpc

import (
	"github.com/LeJamon/goPresale/internal/rpc/rpc_handlers"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

// registerAllMethods fills registry with every presale RPC method
func registerAllMethods(registry *rpc_types.MethodRegistry) {
	// Server Information Methods
	registry.Register("server_info", &rpc_handlers.ServerInfoMethod{})
	registry.Register("ping", &rpc_handlers.PingMethod{})

	// Round Methods
	registry.Register("round_info", &rpc_handlers.RoundInfoMethod{})
	registry.Register("round_list", &rpc_handlers.RoundListMethod{})
	registry.Register("round_capabilities", &rpc_handlers.RoundCapabilitiesMethod{})

	// Purchase Methods
	registry.Register("diagnose_purchase", &rpc_handlers.DiagnosePurchaseMethod{})
	registry.Register("purchase_info", &rpc_handlers.PurchaseInfoMethod{})
	registry.Register("settlements", &rpc_handlers.SettlementsMethod{})

	// Account Methods
	registry.Register("vesting_info", &rpc_handlers.VestingInfoMethod{})
	registry.Register("referral_info", &rpc_handlers.ReferralInfoMethod{})
	registry.Register("rate_limit_info", &rpc_handlers.RateLimitInfoMethod{})
	registry.Register("custody_balances", &rpc_handlers.CustodyBalancesMethod{})
	registry.Register("asset_balance", &rpc_handlers.AssetBalanceMethod{})

	// Methods acting for an address named in the request (require admin role)
	registry.Register("buy", &rpc_handlers.BuyMethod{})
	registry.Register("vesting_claim", &rpc_handlers.VestingClaimMethod{})
	registry.Register("asset_approve", &rpc_handlers.AssetApproveMethod{})

	// Admin Methods (require admin role)
	registry.Register("round_create", &rpc_handlers.RoundCreateMethod{})
	registry.Register("round_pause", &rpc_handlers.RoundPauseMethod{Paused: true})
	registry.Register("round_unpause", &rpc_handlers.RoundPauseMethod{Paused: false})
	registry.Register("round_authorize", &rpc_handlers.RoundAuthorizeMethod{})
	registry.Register("round_revoke", &rpc_handlers.RoundAuthorizeMethod{Revoke: true})
	registry.Register("round_update_oracle", &rpc_handlers.RoundUpdateOracleMethod{})
	registry.Register("kyc_add", &rpc_handlers.KycUpdateMethod{})
	registry.Register("kyc_remove", &rpc_handlers.KycUpdateMethod{Remove: true})
	registry.Register("kyc_batch_add", &rpc_handlers.KycBatchMethod{})
	registry.Register("kyc_batch_remove", &rpc_handlers.KycBatchMethod{Remove: true})
	registry.Register("kyc_check", &rpc_handlers.KycCheckMethod{})
	registry.Register("rate_limit_config", &rpc_handlers.RateLimitConfigMethod{})
	registry.Register("rate_limit_daily_cap", &rpc_handlers.RateLimitDailyCapMethod{})
	registry.Register("rate_limit_reset", &rpc_handlers.RateLimitResetMethod{})
	registry.Register("custody_withdraw", &rpc_handlers.CustodyWithdrawMethod{})
	registry.Register("custody_authorize_depositor", &rpc_handlers.CustodyDepositorMethod{})
	registry.Register("custody_revoke_depositor", &rpc_handlers.CustodyDepositorMethod{Revoke: true})
	registry.Register("asset_credit", &rpc_handlers.AssetCreditMethod{})
}
