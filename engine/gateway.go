// Package engine serializes order flow. The Gateway owns one loop per
// symbol; a loop is the only writer of its book, which makes matching
// deterministic without any lock around book state. Distinct symbols
// share nothing and proceed fully in parallel.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orderable/matchcore/domain/orderbook"
	"github.com/orderable/matchcore/infra/memory"
)

var (
	// ErrBusy reports that the per-symbol admission queue could not be
	// entered within the bounded wait. Transient; callers retry.
	ErrBusy = errors.New("symbol admission queue busy")

	// ErrHalted reports that the symbol stopped matching after an
	// invariant violation and awaits operator inspection.
	ErrHalted = errors.New("symbol halted after engine error")

	ErrClosed = errors.New("gateway closed")
)

type Config struct {
	// QueueSize bounds each symbol's admission queue.
	QueueSize int
	// SubmitTimeout bounds the wait for the per-symbol slot before the
	// submission is reported Busy.
	SubmitTimeout time.Duration
	// RingSize is the per-symbol retire ring capacity (power of two).
	RingSize uint64
}

func (c *Config) withDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 50 * time.Millisecond
	}
	if c.RingSize == 0 {
		c.RingSize = 1 << 14
	}
}

// Result is what a submission resolves to once its matching pass
// completed. Order and Trades are value copies owned by the caller.
type Result struct {
	Order  orderbook.Order
	Trades []orderbook.Trade
	Seq    uint64
}

// SymbolSnapshot is a consistent view of one book, taken inside the
// symbol's critical section. Halted carries the frozen state across a
// restart so a symbol stopped for an invariant violation does not
// silently resume matching.
type SymbolSnapshot struct {
	Symbol   string
	Seq      uint64
	TradeSeq uint64
	Halted   bool
	Orders   []orderbook.Order
}

type Gateway struct {
	cfg  Config
	log  *zap.Logger
	pool *memory.Pool[orderbook.Order]
	done chan struct{}

	mu     sync.RWMutex
	loops  map[string]*symbolLoop
	closed bool
}

func NewGateway(cfg Config, log *zap.Logger) *Gateway {
	cfg.withDefaults()
	return &Gateway{
		cfg: cfg,
		log: log,
		pool: memory.NewPool(func() *orderbook.Order {
			return &orderbook.Order{}
		}),
		done:  make(chan struct{}),
		loops: make(map[string]*symbolLoop),
	}
}

// Submit hands an order to its symbol loop and waits for the matching
// pass. The order template must have ID, Symbol, Side, Type, Price and
// Qty set; Seq is assigned inside the critical section.
func (g *Gateway) Submit(ctx context.Context, o orderbook.Order) (Result, error) {
	l, err := g.loop(o.Symbol)
	if err != nil {
		return Result{}, err
	}
	return g.send(ctx, l, request{kind: reqPlace, order: o})
}

// Cancel sequences a cancellation through the same per-symbol queue as
// new orders, so a cancel and a fill can never race. A symbol that
// never saw an order has no loop and nothing to cancel; looking one up
// must not create it, or arbitrary symbols would pin a goroutine and a
// book forever.
func (g *Gateway) Cancel(ctx context.Context, symbol string, id uint64) (Result, error) {
	g.mu.RLock()
	l, ok := g.loops[symbol]
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return Result{}, ErrClosed
	}
	if !ok {
		return Result{}, orderbook.ErrNotFound
	}
	return g.send(ctx, l, request{kind: reqCancel, cancelID: id})
}

// SnapshotSymbol captures one book inside its critical section.
func (g *Gateway) SnapshotSymbol(ctx context.Context, symbol string) (SymbolSnapshot, error) {
	l, err := g.loop(symbol)
	if err != nil {
		return SymbolSnapshot{}, err
	}
	req := request{kind: reqSnapshot, resp: make(chan response, 1)}
	select {
	case l.reqCh <- req:
	case <-ctx.Done():
		return SymbolSnapshot{}, ctx.Err()
	case <-g.done:
		return SymbolSnapshot{}, ErrClosed
	}
	select {
	case r := <-req.resp:
		return r.snap, r.err
	case <-g.done:
		return SymbolSnapshot{}, ErrClosed
	}
}

// SnapshotAll captures every active book. Books are snapshotted one at
// a time; the result is per-symbol consistent, not cross-symbol.
func (g *Gateway) SnapshotAll(ctx context.Context) ([]SymbolSnapshot, error) {
	g.mu.RLock()
	symbols := make([]string, 0, len(g.loops))
	for s := range g.loops {
		symbols = append(symbols, s)
	}
	g.mu.RUnlock()

	out := make([]SymbolSnapshot, 0, len(symbols))
	for _, s := range symbols {
		snap, err := g.SnapshotSymbol(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Restore seeds a symbol loop from a snapshot before traffic starts.
func (g *Gateway) Restore(ctx context.Context, snap SymbolSnapshot) error {
	l, err := g.loop(snap.Symbol)
	if err != nil {
		return err
	}
	req := request{kind: reqRestore, restore: &snap, resp: make(chan response, 1)}
	select {
	case l.reqCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrClosed
	}
	select {
	case r := <-req.resp:
		return r.err
	case <-g.done:
		return ErrClosed
	}
}

// Halted reports whether a symbol stopped matching.
func (g *Gateway) Halted(symbol string) bool {
	g.mu.RLock()
	l, ok := g.loops[symbol]
	g.mu.RUnlock()
	return ok && l.halted.Load()
}

// Reclaim drains every retire ring back into the order pool.
// Called periodically by the reclaim job.
func (g *Gateway) Reclaim() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, l := range g.loops {
		n += memory.Drain(l.ring, g.pool)
	}
	return n
}

// Close stops every symbol loop. The request channels are never
// closed: a concurrent Submit may still be selecting on one, and a
// send on a closed channel panics. Loops and blocked callers observe
// the done channel instead; requests still queued are dropped and
// their callers get ErrClosed.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	close(g.done)
}

func (g *Gateway) send(ctx context.Context, l *symbolLoop, req request) (Result, error) {
	req.resp = make(chan response, 1)

	t := time.NewTimer(g.cfg.SubmitTimeout)
	defer t.Stop()

	select {
	case l.reqCh <- req:
	case <-t.C:
		return Result{}, ErrBusy
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-g.done:
		return Result{}, ErrClosed
	}

	// The loop responds once the request is queued, unless the gateway
	// shut down with the request still in the queue.
	select {
	case r := <-req.resp:
		return r.result, r.err
	case <-g.done:
		return Result{}, ErrClosed
	}
}

func (g *Gateway) loop(symbol string) (*symbolLoop, error) {
	g.mu.RLock()
	l, ok := g.loops[symbol]
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return l, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	if l, ok := g.loops[symbol]; ok {
		return l, nil
	}

	l = newSymbolLoop(symbol, g)
	g.loops[symbol] = l
	go l.run(g)
	return l, nil
}
