package rpc

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/rpc/rpc_types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Publisher pushes committed settlements to websocket subscribers. It
// satisfies sale.Publisher.
type Publisher struct {
	ws *WebSocketServer
}

// NewPublisher creates a publisher bound to ws.
func NewPublisher(ws *WebSocketServer) *Publisher {
	return &Publisher{ws: ws}
}

// NewSettlementEvent converts a stored settlement into its stream form.
func NewSettlementEvent(s *relationaldb.SettlementRow) rpc_types.SettlementEvent {
	event := rpc_types.SettlementEvent{
		Type:        "settlement",
		ID:          s.ID,
		Round:       s.RoundIndex,
		Sequence:    s.Sequence,
		Buyer:       s.Buyer.Hex(),
		Asset:       s.PayAsset.Hex(),
		Amount:      decString(s.Amount),
		USDValue:    s.USDValue.Decimal().String(),
		BaseTokens:  decString(s.BaseTokens),
		BonusTokens: decString(s.BonusTokens),
		Timestamp:   s.Timestamp,
	}
	if s.Referrer != types.ZeroAddress {
		event.Referrer = s.Referrer.Hex()
		event.ReferrerBonus = decString(s.ReferrerBonus)
	}
	return event
}

func decString(a *types.Amount) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}

// PublishSettlement broadcasts s to matching subscribers.
func (p *Publisher) PublishSettlement(s *relationaldb.SettlementRow) {
	if p == nil || p.ws == nil || s == nil {
		return
	}
	data, err := json.Marshal(NewSettlementEvent(s))
	if err != nil {
		p.ws.rpc.logger.Error("failed to marshal settlement event", zap.Error(err))
		return
	}
	sent := p.ws.broadcast(s.RoundIndex, s.Buyer, s.Referrer, data)
	p.ws.rpc.logger.Debug("settlement published",
		zap.String("id", s.ID),
		zap.Uint64("round", s.RoundIndex),
		zap.Int("subscribers", sent))
}
