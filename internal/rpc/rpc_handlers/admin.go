package rpc_handlers

import (
	"encoding/json"
	"time"

	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

// RateLimitConfigMethod handles the rate_limit_config RPC method
type RateLimitConfigMethod struct{ adminMethod }

func (m *RateLimitConfigMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		MinTimeBetweenTx *rpc_types.Uint64 `json:"min_time_between_tx"`
		MaxTxPerPeriod   *rpc_types.Uint64 `json:"max_tx_per_period"`
		Period           *rpc_types.Uint64 `json:"period"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	switch {
	case request.MinTimeBetweenTx == nil:
		return nil, rpc_types.RpcErrorMissingField("min_time_between_tx")
	case request.MaxTxPerPeriod == nil:
		return nil, rpc_types.RpcErrorMissingField("max_tx_per_period")
	case request.Period == nil:
		return nil, rpc_types.RpcErrorMissingField("period")
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	minTime := time.Duration(*request.MinTimeBetweenTx) * time.Second
	period := time.Duration(*request.Period) * time.Second
	if err := e.UpdateRateLimitConfig(ctx.Context, minTime, uint64(*request.MaxTxPerPeriod), period); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{
		"min_time_between_tx": uint64(*request.MinTimeBetweenTx),
		"max_tx_per_period":   uint64(*request.MaxTxPerPeriod),
		"period":              uint64(*request.Period),
	}, nil
}

// RateLimitDailyCapMethod handles the rate_limit_daily_cap RPC method
type RateLimitDailyCapMethod struct{ adminMethod }

func (m *RateLimitDailyCapMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		MaxDailySpendUSD string `json:"max_daily_spend_usd"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	limit, rpcErr := requireUSD("max_daily_spend_usd", request.MaxDailySpendUSD)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := e.UpdateDailySpendingLimit(ctx.Context, limit); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"max_daily_spend_usd": limit}, nil
}

// RateLimitResetMethod handles the rate_limit_reset RPC method
type RateLimitResetMethod struct{ adminMethod }

func (m *RateLimitResetMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	addr, rpcErr := addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := e.ResetLimit(ctx.Context, addr); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"address": addr.Hex(), "reset": true}, nil
}

// CustodyWithdrawMethod handles the custody_withdraw RPC method
type CustodyWithdrawMethod struct{ adminMethod }

func (m *CustodyWithdrawMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Asset  string `json:"asset"`
		To     string `json:"to"`
		Amount string `json:"amount"`
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
	to, rpcErr := requireAddress("to", request.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := requireAmount("amount", request.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := e.Withdraw(ctx.Context, assetAddr, to, amount); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"asset": assetAddr.Hex(), "to": to.Hex(), "amount": amount.Dec()}, nil
}

// CustodyDepositorMethod handles custody_authorize_depositor and
// custody_revoke_depositor
type CustodyDepositorMethod struct {
	adminMethod
	Revoke bool
}

func (m *CustodyDepositorMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	addr, rpcErr := addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var (
		changed bool
		err     error
	)
	if m.Revoke {
		changed, err = e.RevokeDepositor(ctx.Context, addr)
	} else {
		changed, err = e.AuthorizeDepositor(ctx.Context, addr)
	}
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"address": addr.Hex(), "depositor": !m.Revoke, "changed": changed}, nil
}

// AssetCreditMethod handles the asset_credit RPC method
type AssetCreditMethod struct{ adminMethod }

func (m *AssetCreditMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Asset  string `json:"asset"`
		Owner  string `json:"owner"`
		Amount string `json:"amount"`
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
	amount, rpcErr := requireAmount("amount", request.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := e.Credit(ctx.Context, assetAddr, owner, amount); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"asset": assetAddr.Hex(), "owner": owner.Hex(), "amount": amount.Dec()}, nil
}
