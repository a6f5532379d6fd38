package rpc_handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/LeJamon/goPresale/internal/core/sale"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

// ServerInfoMethod handles the server_info RPC method
type ServerInfoMethod struct{ publicMethod }

func (m *ServerInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	info := map[string]interface{}{
		"build_version": ctx.Services.Version,
		"uptime":        int64(time.Since(ctx.Services.StartedAt).Seconds()),
		"time":          e.Now().UTC().Format(time.RFC3339),
		"initialized":   false,
	}

	state, err := e.System(ctx.Context)
	switch {
	case errors.Is(err, sale.ErrNotInitialized):
	case err != nil:
		return nil, rpc_types.RpcErrorFromSale(err)
	default:
		count, err := e.RoundCount(ctx.Context)
		if err != nil {
			return nil, rpc_types.RpcErrorFromSale(err)
		}
		info["initialized"] = true
		info["authority"] = state.Authority.Hex()
		info["registry"] = state.Registry.Hex()
		info["custody_vault"] = state.CustodyVault.Hex()
		info["vesting_pool"] = state.VestingPool.Hex()
		info["sale_token"] = state.SaleToken.Hex()
		info["rounds"] = count
	}

	assets := e.Assets.All()
	accepted := make([]map[string]interface{}, 0, len(assets))
	for _, a := range assets {
		accepted = append(accepted, map[string]interface{}{
			"symbol":   a.Symbol,
			"address":  a.Address.Hex(),
			"decimals": a.Decimals,
			"kind":     a.Kind,
		})
	}
	info["assets"] = accepted

	return map[string]interface{}{"info": info}, nil
}

// PingMethod handles the ping RPC method
type PingMethod struct{ publicMethod }

func (m *PingMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	return map[string]interface{}{}, nil
}
