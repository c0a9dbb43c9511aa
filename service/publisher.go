package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orderable/matchcore/domain/event"
	"github.com/orderable/matchcore/domain/market"
	"github.com/orderable/matchcore/domain/orderbook"
	"github.com/orderable/matchcore/infra/kafka"
	"github.com/orderable/matchcore/infra/outbox"
	"github.com/orderable/matchcore/infra/sequence"
)

// Publisher externalizes engine outcomes. Every event is staged in the
// durable outbox (at-least-once, drained by the broadcaster); executed
// trades additionally go out on the live feed, best effort. Publish
// failures never roll back matching state.
type Publisher struct {
	outbox *outbox.Outbox
	feed   *kafka.Producer
	seq    *sequence.Sequencer
	log    *zap.Logger
}

func NewPublisher(ob *outbox.Outbox, feed *kafka.Producer, seq *sequence.Sequencer, log *zap.Logger) *Publisher {
	return &Publisher{
		outbox: ob,
		feed:   feed,
		seq:    seq,
		log:    log,
	}
}

// EventSeq returns the last issued event sequence.
func (p *Publisher) EventSeq() uint64 {
	return p.seq.Current()
}

func (p *Publisher) OrderAccepted(o orderbook.Order) {
	p.stage(event.Envelope{
		Type:   event.OrderAccepted,
		Symbol: o.Symbol,
		Seq:    o.Seq,
		Order:  event.FromOrder(o),
	})
}

func (p *Publisher) OrderRejected(raw market.RawOrder, reason error) {
	p.stage(event.Envelope{
		Type:   event.OrderRejected,
		Symbol: raw.Symbol,
		Reason: reason.Error(),
		Order: &event.OrderInfo{
			Symbol: raw.Symbol,
			Side:   raw.Side,
			Type:   raw.Type,
			Qty:    raw.Qty,
		},
	})
}

func (p *Publisher) OrderCancelled(o orderbook.Order) {
	p.stage(event.Envelope{
		Type:   event.OrderCancelled,
		Symbol: o.Symbol,
		Seq:    o.Seq,
		Order:  event.FromOrder(o),
	})
}

func (p *Publisher) TradeExecuted(t orderbook.Trade) {
	data := p.stage(event.Envelope{
		Type:   event.TradeExecuted,
		Symbol: t.Symbol,
		Seq:    t.Seq,
		Trade:  event.FromTrade(t),
	})

	if p.feed == nil || data == nil {
		return
	}
	// Live feed is fire-and-forget market data.
	if err := p.feed.Send(context.Background(), []byte(t.Symbol), data); err != nil {
		p.log.Warn("trade feed send failed", zap.String("symbol", t.Symbol), zap.Error(err))
	}
}

// stage serializes the event and writes it to the outbox. It returns
// the serialized payload for reuse by the live feed.
func (p *Publisher) stage(ev event.Envelope) []byte {
	ev.V = 1
	ev.Time = time.Now().UnixNano()

	data, err := ev.Marshal()
	if err != nil {
		p.log.Error("event marshal failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return nil
	}

	if p.outbox != nil {
		seq := p.seq.Next()
		if err := p.outbox.PutNew(seq, data); err != nil {
			p.log.Error("outbox write failed",
				zap.Uint64("eventSeq", seq),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
	return data
}
