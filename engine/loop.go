package engine

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/orderable/matchcore/domain/orderbook"
	"github.com/orderable/matchcore/infra/memory"
	"github.com/orderable/matchcore/infra/sequence"
)

type reqKind uint8

const (
	reqPlace reqKind = iota
	reqCancel
	reqSnapshot
	reqRestore
)

type request struct {
	kind     reqKind
	order    orderbook.Order
	cancelID uint64
	restore  *SymbolSnapshot
	resp     chan response
}

type response struct {
	result Result
	snap   SymbolSnapshot
	err    error
}

// symbolLoop is the per-symbol critical section: a single goroutine
// draining a bounded queue. Everything it touches (book, sequencer,
// ring producer side) is owned by that goroutine.
type symbolLoop struct {
	symbol string
	reqCh  chan request
	book   *orderbook.OrderBook
	seq    *sequence.Sequencer
	ring   *memory.RetireRing
	halted atomic.Bool
}

func newSymbolLoop(symbol string, g *Gateway) *symbolLoop {
	return &symbolLoop{
		symbol: symbol,
		reqCh:  make(chan request, g.cfg.QueueSize),
		book:   orderbook.NewOrderBook(symbol),
		seq:    sequence.New(0),
		ring:   memory.NewRetireRing(g.cfg.RingSize),
	}
}

func (l *symbolLoop) run(g *Gateway) {
	for {
		select {
		case req := <-l.reqCh:
			l.dispatch(g, req)
		case <-g.done:
			return
		}
	}
}

func (l *symbolLoop) dispatch(g *Gateway, req request) {
	switch req.kind {
	case reqPlace:
		req.resp <- l.place(g, req)
	case reqCancel:
		req.resp <- l.cancel(g, req)
	case reqSnapshot:
		req.resp <- l.snapshot()
	case reqRestore:
		req.resp <- l.restoreFrom(g, req)
	}
}

func (l *symbolLoop) place(g *Gateway, req request) response {
	if l.halted.Load() {
		return response{err: ErrHalted}
	}

	o := g.pool.Get()
	*o = req.order
	o.Seq = l.seq.Next()

	trades, err := l.book.Place(o)
	l.retireBatch(g, l.book.TakeRetired())
	if err != nil {
		// Invariant violation: freeze this symbol, keep the book for
		// inspection, surface the error to the caller and operators.
		l.halted.Store(true)
		g.log.Error("matching pass failed, symbol halted",
			zap.String("symbol", l.symbol),
			zap.Uint64("seq", o.Seq),
			zap.Error(err),
		)
		return response{err: err}
	}

	res := Result{Order: *o, Trades: trades, Seq: o.Seq}
	if o.Status == orderbook.Filled || o.Status == orderbook.Cancelled {
		l.retire(g, o)
	}
	return response{result: res}
}

func (l *symbolLoop) cancel(g *Gateway, req request) response {
	if l.halted.Load() {
		return response{err: ErrHalted}
	}

	o, err := l.book.Cancel(req.cancelID)
	if err != nil {
		if engErr, ok := err.(*orderbook.EngineError); ok {
			l.halted.Store(true)
			g.log.Error("cancel failed, symbol halted",
				zap.String("symbol", l.symbol),
				zap.Error(engErr),
			)
		}
		return response{err: err}
	}

	res := Result{Order: *o, Seq: o.Seq}
	l.retireBatch(g, l.book.TakeRetired())
	return response{result: res}
}

func (l *symbolLoop) snapshot() response {
	return response{snap: SymbolSnapshot{
		Symbol:   l.symbol,
		Seq:      l.seq.Current(),
		TradeSeq: l.book.TradeSeq(),
		Halted:   l.halted.Load(),
		Orders:   l.book.ActiveOrders(),
	}}
}

func (l *symbolLoop) restoreFrom(g *Gateway, req request) response {
	snap := req.restore
	if snap.Halted {
		// The symbol was frozen when the snapshot was taken; it stays
		// frozen until an operator clears it.
		l.halted.Store(true)
	}
	for _, e := range snap.Orders {
		o := g.pool.Get()
		*o = e
		if _, err := l.book.Place(o); err != nil {
			l.halted.Store(true)
			return response{err: err}
		}
	}
	l.book.RestoreSeqs(snap.Seq, snap.TradeSeq)
	l.seq.Reset(snap.Seq)
	return response{}
}

func (l *symbolLoop) retire(g *Gateway, o *orderbook.Order) {
	if !l.ring.Enqueue(o) {
		g.pool.Put(o) // ring full, recycle inline
	}
}

func (l *symbolLoop) retireBatch(g *Gateway, orders []*orderbook.Order) {
	for _, o := range orders {
		l.retire(g, o)
	}
}
