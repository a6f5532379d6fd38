package rpc_handlers

import (
	"encoding/json"

	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// BuyMethod handles the buy RPC method. The buyer must have approved the
// round address for token payments; native payments are taken from the
// buyer's balance.
type BuyMethod struct{ adminMethod }

func (m *BuyMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.BuyParams
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	req, rpcErr := buyRequest(e, request)
	if rpcErr != nil {
		return nil, rpcErr
	}

	settlement, err := e.Buy(ctx.Context, req)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"settlement": settlement}, nil
}

// DiagnosePurchaseMethod handles the diagnose_purchase RPC method
type DiagnosePurchaseMethod struct{ publicMethod }

func (m *DiagnosePurchaseMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request rpc_types.BuyParams
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	req, rpcErr := buyRequest(e, request)
	if rpcErr != nil {
		return nil, rpcErr
	}

	d, err := e.Diagnose(ctx.Context, req)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"diagnosis": d}, nil
}

// PurchaseInfoMethod handles the purchase_info RPC method. Without a buyer
// it lists every purchase record of the round.
type PurchaseInfoMethod struct{ publicMethod }

func (m *PurchaseInfoMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.RoundParam
		Buyer string `json:"buyer,omitempty"`
	}
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

	if request.Buyer == "" {
		rows, err := e.Purchases(ctx.Context, index)
		if err != nil {
			return nil, rpc_types.RpcErrorFromSale(err)
		}
		if rows == nil {
			rows = []relationaldb.PurchaseRow{}
		}
		return map[string]interface{}{"round": index, "purchases": rows}, nil
	}

	buyer, rpcErr := requireAddress("buyer", request.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	row, err := e.Purchase(ctx.Context, index, buyer)
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	return map[string]interface{}{"purchase": row}, nil
}

// SettlementsMethod handles the settlements RPC method
type SettlementsMethod struct{ publicMethod }

const (
	defaultSettlementPage = 200
	maxSettlementPage     = 1000
)

func (m *SettlementsMethod) Handle(ctx *rpc_types.RpcContext, params json.RawMessage) (interface{}, *rpc_types.RpcError) {
	var request struct {
		rpc_types.RoundParam
		Marker rpc_types.Uint64 `json:"marker"`
		Limit  rpc_types.Uint64 `json:"limit"`
	}
	if rpcErr := parseParams(params, &request); rpcErr != nil {
		return nil, rpcErr
	}
	index, rpcErr := requireRound(request.Round)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if request.Limit == 0 {
		request.Limit = defaultSettlementPage
	}
	if request.Limit > maxSettlementPage {
		request.Limit = maxSettlementPage
	}
	e, rpcErr := engine(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	rows, err := e.Settlements(ctx.Context, relationaldb.SettlementQuery{
		RoundIndex: index,
		AfterSeq:   uint64(request.Marker),
		Limit:      int(request.Limit),
	})
	if err != nil {
		return nil, rpc_types.RpcErrorFromSale(err)
	}
	result := map[string]interface{}{"round": index, "settlements": rows}
	if rows == nil {
		result["settlements"] = []relationaldb.SettlementRow{}
	}
	if n := len(rows); n > 0 && n == int(request.Limit) {
		result["marker"] = rows[n-1].Sequence
	}
	return result, nil
}
