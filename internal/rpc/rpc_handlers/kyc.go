package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

func eligibility(ctx *rpc_types.RpcContext) (rpc_types.Eligibility, *rpc_types.RpcError) {
	if ctx.Services == nil || ctx.Services.Eligibility == nil {
		return nil, rpc_types.RpcErrorInternal("Eligibility registry not available")
	}
	return ctx.Services.Eligibility, nil
}

// KycCheckMethod handles the kyc_check RPC method
type KycCheckMethod struct{ adminMethod }

func (m *KycCheckMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.AddressParam
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	reg, rpcErr := eligibility(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	// without an address the whole list is returned
	if request.Address == "" {
		entries, err := reg.List(ctx.Context)
		if err != nil {
			return nil, rpc_types.RpcErrorFromSale(err)
		}
		out := make([]map[string]interface{}, 0, len(entries))
		for _, entry := range entries {
			out = append(out, map[string]interface{}{
				"address":     entry.Address.Hex(),
				"approved_at": entry.ApprovedAt,
			})
		}
		return map[string]interface{}{"approved": out, "count": len(out)}, nil
	}

	addr, rpcErr := requireAddress("address", request.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := reg.IsApproved(ctx.Context, addr)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"address": addr.Hex(), "approved": ok}, nil
}

// KycUpdateMethod handles kyc_add and kyc_remove
type KycUpdateMethod struct {
	adminMethod
	Remove bool
}

func (m *KycUpdateMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	addr, rpcErr := addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	reg, rpcErr := eligibility(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var err error
	if m.Remove {
		err = reg.Remove(ctx.Context, addr)
	} else {
		err = reg.Add(ctx.Context, addr)
	}
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"address": addr.Hex(), "approved": !m.Remove}, nil
}

// KycBatchMethod handles kyc_batch_add and kyc_batch_remove. Entries that
// are already in the requested state are skipped.
type KycBatchMethod struct {
	adminMethod
	Remove bool
}

func (m *KycBatchMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		Addresses []string `json:"addresses"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	addrs, rpcErr := addressList("addresses", request.Addresses)
	if rpcErr != nil {
		return nil, rpcErr
	}
	reg, rpcErr := eligibility(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var (
		changed int
		err     error
	)
	if m.Remove {
		changed, err = reg.BatchRemove(ctx.Context, addrs)
	} else {
		changed, err = reg.BatchAdd(ctx.Context, addrs)
	}
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{
		"requested": len(addrs),
		"changed":   changed,
		"skipped":   len(addrs) - changed,
	}, nil
}
