// Package service orchestrates the core components of the matching
// engine: validation, journaling, per-symbol sequencing and event
// publication. It is the only write entry point, decoupled from
// network transports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/orderable/matchcore/domain/market"
	"github.com/orderable/matchcore/domain/orderbook"
	"github.com/orderable/matchcore/engine"
	"github.com/orderable/matchcore/infra/sequence"
	"github.com/orderable/matchcore/infra/wal"
)

// CancelOrder is the inbound cancellation command.
type CancelOrder struct {
	Symbol  string
	OrderID uint64
}

// placePayload is the journaled form of an admitted order.
type placePayload struct {
	ID     uint64 `json:"id"`
	Symbol string `json:"symbol"`
	Side   uint8  `json:"side"`
	Type   uint8  `json:"type"`
	Price  int64  `json:"price"`
	Qty    int64  `json:"qty"`
}

type cancelPayload struct {
	OrderID uint64 `json:"orderId"`
	Symbol  string `json:"symbol"`
}

type OrderService struct {
	validator *market.Validator
	gateway   *engine.Gateway
	journal   *wal.WAL
	ids       *sequence.Sequencer
	pub       *Publisher
	log       *zap.Logger

	// journalMu makes taking an intake sequence and appending its
	// record one atomic step. Without it two admissions can land on
	// disk out of sequence order, which replay rejects.
	journalMu sync.Mutex
	inflight  inflight
}

// NewOrderService wires all dependencies. No globals.
func NewOrderService(
	validator *market.Validator,
	gateway *engine.Gateway,
	journal *wal.WAL,
	ids *sequence.Sequencer,
	pub *Publisher,
	log *zap.Logger,
) *OrderService {
	s := &OrderService{
		validator: validator,
		gateway:   gateway,
		journal:   journal,
		ids:       ids,
		pub:       pub,
		log:       log,
	}
	s.inflight.init()
	return s
}

//
// -------------------- Commands --------------------
//

// PlaceOrder validates, journals and sequences a new order, then
// publishes the resulting events. The returned Result carries the
// order's final status for this pass and any trades it produced.
func (s *OrderService) PlaceOrder(ctx context.Context, raw market.RawOrder) (engine.Result, error) {
	vo, err := s.validator.Validate(raw)
	if err != nil {
		s.pub.OrderRejected(raw, err)
		return engine.Result{}, err
	}

	s.journalMu.Lock()
	id := s.ids.Next()
	s.inflight.add(id)
	err = s.appendPlace(id, vo)
	s.journalMu.Unlock()
	defer s.inflight.remove(id)

	if err != nil {
		// An unjournaled order must not reach the engine.
		s.log.Error("journal append failed", zap.Uint64("id", id), zap.Error(err))
		return engine.Result{}, err
	}

	res, err := s.gateway.Submit(ctx, orderbook.Order{
		ID:     id,
		Symbol: vo.Symbol,
		Side:   vo.Side,
		Type:   vo.Type,
		Price:  vo.Price,
		Qty:    vo.Qty,
	})
	if err != nil {
		return engine.Result{}, err
	}

	s.pub.OrderAccepted(res.Order)
	for _, t := range res.Trades {
		s.pub.TradeExecuted(t)
	}
	return res, nil
}

// CancelOrder sequences a cancellation through the same per-symbol
// gateway as placements. An unknown order is a NotFound outcome; an
// unlisted symbol is rejected before anything is journaled.
func (s *OrderService) CancelOrder(ctx context.Context, cmd CancelOrder) (engine.Result, error) {
	if cmd.OrderID == 0 {
		return engine.Result{}, orderbook.ErrNotFound
	}
	if !s.validator.KnownSymbol(cmd.Symbol) {
		return engine.Result{}, &market.ValidationError{Reason: market.ErrUnknownSymbol}
	}

	s.journalMu.Lock()
	seq := s.ids.Next()
	s.inflight.add(seq)
	err := s.appendCancel(seq, cmd)
	s.journalMu.Unlock()
	defer s.inflight.remove(seq)

	if err != nil {
		s.log.Error("journal append failed", zap.Uint64("seq", seq), zap.Error(err))
		return engine.Result{}, err
	}

	res, err := s.gateway.Cancel(ctx, cmd.Symbol, cmd.OrderID)
	if err != nil {
		return engine.Result{}, err
	}

	s.pub.OrderCancelled(res.Order)
	return res, nil
}

//
// -------------------- Queries --------------------
//

// DepthLevel is one aggregated price level of a book side.
type DepthLevel struct {
	Price int64
	Qty   int64
}

type Depth struct {
	Symbol string
	Bids   []DepthLevel
	Asks   []DepthLevel
}

// BookDepth returns the aggregated ladder for one symbol, taken inside
// that symbol's critical section.
func (s *OrderService) BookDepth(ctx context.Context, symbol string) (Depth, error) {
	snap, err := s.gateway.SnapshotSymbol(ctx, symbol)
	if err != nil {
		return Depth{}, err
	}

	d := Depth{Symbol: symbol}
	for _, o := range snap.Orders {
		if o.Side == orderbook.Buy {
			d.Bids = appendLevel(d.Bids, o)
		} else {
			d.Asks = appendLevel(d.Asks, o)
		}
	}
	return d, nil
}

// Halted reports whether a symbol stopped matching after an invariant
// violation.
func (s *OrderService) Halted(symbol string) bool {
	return s.gateway.Halted(symbol)
}

// appendLevel aggregates consecutive orders of one price; snapshot
// order is already best-to-worst per side.
func appendLevel(levels []DepthLevel, o orderbook.Order) []DepthLevel {
	if n := len(levels); n > 0 && levels[n-1].Price == o.Price {
		levels[n-1].Qty += o.Remaining()
		return levels
	}
	return append(levels, DepthLevel{Price: o.Price, Qty: o.Remaining()})
}

//
// -------------------- Journaling --------------------
//

func (s *OrderService) appendPlace(id uint64, vo market.ValidOrder) error {
	data, err := json.Marshal(placePayload{
		ID:     id,
		Symbol: vo.Symbol,
		Side:   uint8(vo.Side),
		Type:   uint8(vo.Type),
		Price:  vo.Price,
		Qty:    vo.Qty,
	})
	if err != nil {
		return err
	}
	return s.journal.Append(wal.NewRecord(wal.RecordPlace, id, data))
}

func (s *OrderService) appendCancel(seq uint64, cmd CancelOrder) error {
	data, err := json.Marshal(cancelPayload{
		OrderID: cmd.OrderID,
		Symbol:  cmd.Symbol,
	})
	if err != nil {
		return err
	}
	return s.journal.Append(wal.NewRecord(wal.RecordCancel, seq, data))
}

// IsValidationError reports whether err came from admission checks.
func IsValidationError(err error) bool {
	var ve *market.ValidationError
	return errors.As(err, &ve)
}
