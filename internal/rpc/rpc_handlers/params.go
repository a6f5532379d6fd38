package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goPresale/internal/core/sale"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
)

var allVersions = []int{rpc_types.ApiVersion1}

// publicMethod and adminMethod carry the role of a handler.
type publicMethod struct{}

func (publicMethod) RequiredRole() rpc_types.Role { return rpc_types.RoleGuest }
func (publicMethod) SupportedApiVersions() []int  { return allVersions }

type adminMethod struct{}

func (adminMethod) RequiredRole() rpc_types.Role { return rpc_types.RoleAdmin }
func (adminMethod) SupportedApiVersions() []int  { return allVersions }

func parseParams(params json.RawMessage, dst interface{}) *rpc_types.RpcError {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return rpc_types.RpcErrorInvalidParams("Invalid parameters: " + err.Error())
	}
	return nil
}

func engine(ctx *rpc_types.RpcContext) (*sale.Engine, *rpc_types.RpcError) {
	if ctx.Services == nil || ctx.Services.Sale == nil {
		return nil, rpc_types.RpcErrorInternal("Sale engine not available")
	}
	return ctx.Services.Sale, nil
}

func requireAddress(field, value string) (types.Address, *rpc_types.RpcError) {
	if value == "" {
		return types.ZeroAddress, rpc_types.RpcErrorMissingField(field)
	}
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.ZeroAddress, rpc_types.RpcErrorActMalformed(field)
	}
	return addr, nil
}

// optionalAddress returns the zero address for an empty value.
func optionalAddress(field, value string) (types.Address, *rpc_types.RpcError) {
	if value == "" {
		return types.ZeroAddress, nil
	}
	return requireAddress(field, value)
}

// asset accepts a configured symbol ("USDT", "ETH") or an address.
func asset(e *sale.Engine, value string) (types.Address, *rpc_types.RpcError) {
	if value == "" {
		return types.ZeroAddress, rpc_types.RpcErrorMissingField("asset")
	}
	if a, ok := e.Assets.Lookup(value); ok {
		return a.Address, nil
	}
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.ZeroAddress, rpc_types.RpcErrorInvalidField("asset")
	}
	return addr, nil
}

func requireRound(r *rpc_types.Uint64) (uint64, *rpc_types.RpcError) {
	if r == nil {
		return 0, rpc_types.RpcErrorMissingField("round")
	}
	return uint64(*r), nil
}

func requireAmount(field, value string) (*types.Amount, *rpc_types.RpcError) {
	if value == "" {
		return nil, rpc_types.RpcErrorMissingField(field)
	}
	a, err := types.ParseAmount(value)
	if err != nil {
		return nil, rpc_types.RpcErrorInvalidField(field)
	}
	return a, nil
}

func requireUSD(field, value string) (types.USD, *rpc_types.RpcError) {
	if value == "" {
		return 0, rpc_types.RpcErrorMissingField(field)
	}
	u, err := types.ParseUSD(value)
	if err != nil {
		return 0, rpc_types.RpcErrorInvalidField(field)
	}
	return u, nil
}

func buyRequest(e *sale.Engine, p rpc_types.BuyParams) (sale.BuyRequest, *rpc_types.RpcError) {
	var (
		req    sale.BuyRequest
		rpcErr *rpc_types.RpcError
	)
	if req.Round, rpcErr = requireRound(p.Round); rpcErr != nil {
		return req, rpcErr
	}
	if req.Buyer, rpcErr = requireAddress("buyer", p.Buyer); rpcErr != nil {
		return req, rpcErr
	}
	if req.Asset, rpcErr = asset(e, p.Asset); rpcErr != nil {
		return req, rpcErr
	}
	if req.Amount, rpcErr = requireAmount("amount", p.Amount); rpcErr != nil {
		return req, rpcErr
	}
	if req.Referrer, rpcErr = optionalAddress("referrer", p.Referrer); rpcErr != nil {
		return req, rpcErr
	}
	return req, nil
}

func addressList(field string, values []string) ([]types.Address, *rpc_types.RpcError) {
	if len(values) == 0 {
		return nil, rpc_types.RpcErrorMissingField(field)
	}
	out := make([]types.Address, 0, len(values))
	for _, v := range values {
		addr, rpcErr := requireAddress(field, v)
		if rpcErr != nil {
			return nil, rpcErr
		}
		out = append(out, addr)
	}
	return out, nil
}
