package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

// addressQuery parses {"address": ...} for the single-address queries.
func addressQuery(params json.RawMessage) (types.Address, *rpc_types.RpcError) {
	var request rpc_types.AddressParam
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return types.ZeroAddress, rpcErr
	}
	return requireAddress("address", request.Address)
}

// VestingInfoMethod handles the vesting_info RPC method
type VestingInfoMethod struct{ publicMethod }

func (m *VestingInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	addr, rpcErr := addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	summary, err := e.VestingSummary(ctx.Context, addr)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"vesting": summary}, nil
}

// VestingClaimMethod handles the vesting_claim RPC method
type VestingClaimMethod struct{ adminMethod }

func (m *VestingClaimMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	addr, rpcErr := addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	paid, err := e.Claim(ctx.Context, addr)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"address": addr.Hex(), "claimed": paid.Dec()}, nil
}

// ReferralInfoMethod handles the referral_info RPC method
type ReferralInfoMethod struct{ publicMethod }

func (m *ReferralInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	addr, rpcErr := addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := e.ReferralInfo(ctx.Context, addr)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"referral": info}, nil
}

// RateLimitInfoMethod handles the rate_limit_info RPC method. Without an
// address it reports the global configuration only.
type RateLimitInfoMethod struct{ publicMethod }

func (m *RateLimitInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.AddressParam
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cfg, err := e.RateLimitConfig(ctx.Context)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	result := map[string]interface{}{
		"config": map[string]interface{}{
			"min_time_between_tx": int64(cfg.MinTimeBetweenTx.Seconds()),
			"max_tx_per_period":   cfg.MaxTxPerPeriod,
			"period":              int64(cfg.Period.Seconds()),
			"max_daily_spend_usd": cfg.MaxDailySpendUSD,
		},
	}
	if request.Address == "" {
		return result, nil
	}
	addr, rpcErr := requireAddress("address", request.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := e.RateLimitInfo(ctx.Context, addr)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	result["limits"] = info
	return result, nil
}

// CustodyBalancesMethod handles the custody_balances RPC method
type CustodyBalancesMethod struct{ publicMethod }

func (m *CustodyBalancesMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	vault, err := e.Custody.Address()
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	balances, err := e.CustodyBalances(ctx.Context)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	out := make([]map[string]interface{}, 0, len(balances))
	for _, b := range balances {
		entry := map[string]interface{}{"asset": b.Asset.Hex(), "amount": b.Amount.Dec()}
		if a, ok := e.Assets.ByAddress(b.Asset); ok {
			entry["symbol"] = a.Symbol
			entry["formatted"] = types.FormatUnits(b.Amount, a.Decimals)
		}
		out = append(out, entry)
	}
	return map[string]interface{}{"vault": vault.Hex(), "balances": out}, nil
}

// AssetBalanceMethod handles the asset_balance RPC method
type AssetBalanceMethod struct{ publicMethod }

func (m *AssetBalanceMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Asset   string `json:"asset"`
		Owner   string `json:"owner"`
		Spender string `json:"spender,omitempty"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetAddr, rpcErr := asset(e, request.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := requireAddress("owner", request.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := optionalAddress("spender", request.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}

	bal, allowance, err := e.AssetBalance(ctx.Context, assetAddr, owner, spender)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	result := map[string]interface{}{
		"asset":   assetAddr.Hex(),
		"owner":   owner.Hex(),
		"balance": bal.Dec(),
	}
	if allowance != nil {
		result["spender"] = spender.Hex()
		result["allowance"] = allowance.Dec()
	}
	return result, nil
}

// AssetApproveMethod handles the asset_approve RPC method
type AssetApproveMethod struct{ adminMethod }

func (m *AssetApproveMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Asset   string `json:"asset"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetAddr, rpcErr := asset(e, request.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := requireAddress("owner", request.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := requireAddress("spender", request.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := requireAmount("amount", request.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := e.Approve(ctx.Context, assetAddr, owner, spender, amount); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{
		"asset":     assetAddr.Hex(),
		"owner":     owner.Hex(),
		"spender":   spender.Hex(),
		"allowance": amount.Dec(),
	}, nil
}
