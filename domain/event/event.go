// Package event defines the externalized event records. Every event
// carries the full immutable payload plus the per-symbol sequence so
// downstream consumers can reconstruct ordering.
package event

import (
	"encoding/json"

	"github.com/orderable/matchcore/domain/orderbook"
)

type Type string

const (
	OrderAccepted  Type = "ORDER_ACCEPTED"
	OrderRejected  Type = "ORDER_REJECTED"
	OrderCancelled Type = "ORDER_CANCELLED"
	TradeExecuted  Type = "TRADE_EXECUTED"
)

type OrderInfo struct {
	ID     uint64 `json:"id"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Type   string `json:"type"`
	Price  int64  `json:"price"`
	Qty    int64  `json:"qty"`
	Filled int64  `json:"filled"`
	Seq    uint64 `json:"seq"`
	Status string `json:"status"`
}

type TradeInfo struct {
	MakerID uint64 `json:"makerId"`
	TakerID uint64 `json:"takerId"`
	Symbol  string `json:"symbol"`
	Price   int64  `json:"price"`
	Qty     int64  `json:"qty"`
	Seq     uint64 `json:"seq"`
}

type Envelope struct {
	V      int        `json:"v"`
	Type   Type       `json:"type"`
	Symbol string     `json:"symbol"`
	Seq    uint64     `json:"seq"`
	Time   int64      `json:"time"`
	Order  *OrderInfo `json:"order,omitempty"`
	Trade  *TradeInfo `json:"trade,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func FromOrder(o orderbook.Order) *OrderInfo {
	return &OrderInfo{
		ID:     o.ID,
		Symbol: o.Symbol,
		Side:   o.Side.String(),
		Type:   o.Type.String(),
		Price:  o.Price,
		Qty:    o.Qty,
		Filled: o.Filled,
		Seq:    o.Seq,
		Status: o.Status.String(),
	}
}

func FromTrade(t orderbook.Trade) *TradeInfo {
	return &TradeInfo{
		MakerID: t.MakerID,
		TakerID: t.TakerID,
		Symbol:  t.Symbol,
		Price:   t.Price,
		Qty:     t.Qty,
		Seq:     t.Seq,
	}
}
