package rpc_handlers

import (
	"encoding/json"
	"time"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/sale"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

// RoundInfoMethod handles the round_info RPC method
type RoundInfoMethod struct{ publicMethod }

func (m *RoundInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.RoundParam
		Address string `json:"address,omitempty"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var (
		round *sale.Round
		err   error
	)
	if request.Address != "" {
		addr, rpcErr := requireAddress("address", request.Address)
		if rpcErr != nil {
			return nil, rpcErr
		}
		round, err = e.RoundByAddress(ctx.Context, addr)
	} else {
		index, rpcErr := requireRound(request.Round)
		if rpcErr != nil {
			return nil, rpcErr
		}
		round, err = e.GetRound(ctx.Context, index)
	}
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"round": round}, nil
}

// RoundListMethod handles the round_list RPC method
type RoundListMethod struct{ publicMethod }

func (m *RoundListMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rounds, err := e.ListRounds(ctx.Context)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	if rounds == nil {
		rounds = []*sale.Round{}
	}
	return map[string]interface{}{"rounds": rounds}, nil
}

// RoundCapabilitiesMethod handles the round_capabilities RPC method
type RoundCapabilitiesMethod struct{ publicMethod }

func (m *RoundCapabilitiesMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.RoundParam
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	index, rpcErr := requireRound(request.Round)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	status, err := e.RoundCapabilities(ctx.Context, index)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	authorized := true
	for _, ledger := range access.RoundLedgers {
		authorized = authorized && status[ledger]
	}
	return map[string]interface{}{
		"round":        index,
		"capabilities": status,
		"authorized":   authorized,
	}, nil
}

// RoundCreateMethod handles the round_create RPC method
type RoundCreateMethod struct{ adminMethod }

func (m *RoundCreateMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Name            string            `json:"name"`
		TokenPriceUSD   string            `json:"token_price_usd"`
		HardCapUSD      string            `json:"hard_cap_usd"`
		StartTime       *rpc_types.Uint64 `json:"start_time"`
		EndTime         *rpc_types.Uint64 `json:"end_time"`
		CliffDuration   rpc_types.Uint64  `json:"cliff_duration"`
		VestingDuration rpc_types.Uint64  `json:"vesting_duration"`
		IsActive        *bool             `json:"is_active"`
		Oracle          string            `json:"oracle"`
		Authorize       bool              `json:"authorize"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	cfg := sale.RoundConfig{
		Name:            request.Name,
		CliffDuration:   time.Duration(request.CliffDuration) * time.Second,
		VestingDuration: time.Duration(request.VestingDuration) * time.Second,
		IsActive:        request.IsActive == nil || *request.IsActive,
		Oracle:          request.Oracle,
	}
	if cfg.TokenPriceUSD, rpcErr = requireUSD("token_price_usd", request.TokenPriceUSD); rpcErr != nil {
		return nil, rpcErr
	}
	if cfg.HardCapUSD, rpcErr = requireUSD("hard_cap_usd", request.HardCapUSD); rpcErr != nil {
		return nil, rpcErr
	}
	if request.StartTime == nil {
		return nil, rpc_types.RpcErrorMissingField("start_time")
	}
	if request.EndTime == nil {
		return nil, rpc_types.RpcErrorMissingField("end_time")
	}
	cfg.StartTime = time.Unix(int64(*request.StartTime), 0)
	cfg.EndTime = time.Unix(int64(*request.EndTime), 0)

	round, err := e.CreateRound(ctx.Context, cfg)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	result := map[string]interface{}{"round": round}
	if request.Authorize {
		if _, err := e.AuthorizeRound(ctx.Context, round.Index); err != nil {
			return nil, rpc_types.RpcErrorFromSale(err)
		}
		result["authorized"] = true
	}
	return result, nil
}

// RoundPauseMethod handles round_pause and round_unpause
type RoundPauseMethod struct {
	adminMethod
	Paused bool
}

func (m *RoundPauseMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.RoundParam
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	index, rpcErr := requireRound(request.Round)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var err error
	if m.Paused {
		err = e.Pause(ctx.Context, index)
	} else {
		err = e.Unpause(ctx.Context, index)
	}
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"round": index, "paused": m.Paused}, nil
}

// RoundAuthorizeMethod handles round_authorize and round_revoke
type RoundAuthorizeMethod struct {
	adminMethod
	Revoke bool
}

func (m *RoundAuthorizeMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.RoundParam
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	index, rpcErr := requireRound(request.Round)
	if rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if m.Revoke {
		if err := e.RevokeRound(ctx.Context, index); err != nil {
			return nil, rpc_types.RpcErrorFromSale(err)
		}
		return map[string]interface{}{"round": index, "authorized": false}, nil
	}
	if _, err := e.AuthorizeRound(ctx.Context, index); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"round": index, "authorized": true}, nil
}

// RoundUpdateOracleMethod handles the round_update_oracle RPC method
type RoundUpdateOracleMethod struct{ adminMethod }

func (m *RoundUpdateOracleMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.RoundParam
		Oracle string `json:"oracle"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	index, rpcErr := requireRound(request.Round)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if request.Oracle == "" {
		return nil, rpc_types.RpcErrorMissingField("oracle")
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := e.UpdateOracle(ctx.Context, index, request.Oracle); err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"round": index, "oracle": request.Oracle}, nil
}
