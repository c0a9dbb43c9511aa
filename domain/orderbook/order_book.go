package orderbook

// OrderBook is single-writer and deterministic. All mutation happens
// on the owning symbol loop; no locks, no wall clock in matching
// decisions.
type OrderBook struct {
	Symbol string

	Bids *RBTree
	Asks *RBTree

	// index maps resting order IDs to their orders for O(log n) cancel.
	index map[uint64]*Order

	lastSeq  uint64
	tradeSeq uint64

	// retired collects orders removed by the last pass, for the owner
	// to hand to the retire ring.
	retired []*Order
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		Bids:   NewRBTree(),
		Asks:   NewRBTree(),
		index:  make(map[uint64]*Order),
	}
}

func (b *OrderBook) LastSeq() uint64  { return b.lastSeq }
func (b *OrderBook) TradeSeq() uint64 { return b.tradeSeq }

// RestoreSeqs rewinds internal counters when rebuilding from a snapshot.
func (b *OrderBook) RestoreSeqs(lastSeq, tradeSeq uint64) {
	b.lastSeq = lastSeq
	b.tradeSeq = tradeSeq
}

// Place runs one matching pass for the incoming order. It returns the
// trades produced, in execution order. A non-nil error is always an
// *EngineError; the book must not be matched against afterwards.
func (b *OrderBook) Place(o *Order) ([]Trade, error) {
	b.lastSeq = o.Seq

	trades := b.match(o)

	if o.Remaining() < 0 {
		return trades, &EngineError{
			Symbol: b.Symbol,
			Seq:    o.Seq,
			Reason: "negative remaining quantity on taker",
		}
	}

	switch {
	case o.Remaining() == 0:
		o.Status = Filled
	case o.Type == Limit:
		// Residual rests at its price, time priority by admission seq.
		if o.Filled > 0 {
			o.Status = PartiallyFilled
		}
		b.sideTree(o.Side).GetOrCreate(o.Price).Enqueue(o)
		b.index[o.ID] = o
	default:
		// Market residual never rests.
		o.Status = Cancelled
	}

	if b.crossed() {
		return trades, &EngineError{
			Symbol: b.Symbol,
			Seq:    o.Seq,
			Reason: "crossed book after matching pass",
		}
	}
	return trades, nil
}

// Cancel removes a resting order. ErrNotFound is a normal outcome.
func (b *OrderBook) Cancel(id uint64) (*Order, error) {
	o, ok := b.index[id]
	if !ok {
		return nil, ErrNotFound
	}

	tree := b.sideTree(o.Side)
	lvl := tree.Find(o.Price)
	if lvl == nil {
		return nil, &EngineError{
			Symbol: b.Symbol,
			Seq:    b.lastSeq,
			Reason: "indexed order has no price level",
		}
	}

	lvl.Unlink(o)
	if lvl.Empty() {
		tree.Delete(lvl.Price)
	}
	delete(b.index, id)

	o.Status = Cancelled
	b.retired = append(b.retired, o)
	return o, nil
}

// TakeRetired drains orders removed since the last call. The caller
// owns recycling them.
func (b *OrderBook) TakeRetired() []*Order {
	out := b.retired
	b.retired = nil
	return out
}

// ---- traversal helpers ----

func (b *OrderBook) WalkBids(fn func(*PriceLevel)) {
	b.Bids.walkDesc(fn)
}

func (b *OrderBook) WalkAsks(fn func(*PriceLevel)) {
	b.Asks.walkAsc(fn)
}

// ActiveOrders returns value copies of every resting order, bids best
// to worst then asks best to worst.
func (b *OrderBook) ActiveOrders() []Order {
	out := make([]Order, 0, len(b.index))
	visit := func(lvl *PriceLevel) {
		for o := lvl.Head(); o != nil; o = o.next {
			cp := *o
			cp.next, cp.prev = nil, nil
			out = append(out, cp)
		}
	}
	b.WalkBids(visit)
	b.WalkAsks(visit)
	return out
}

// ---- matching ----

func (b *OrderBook) match(taker *Order) []Trade {
	opp := b.Asks
	if taker.Side == Sell {
		opp = b.Bids
	}

	var trades []Trade
	for taker.Remaining() > 0 {
		best := b.bestOpposing(taker.Side, opp)
		if best == nil {
			break
		}
		if taker.Type != Market && !marketable(taker, best.Price) {
			break
		}

		maker := best.Head()
		qty := min64(taker.Remaining(), maker.Remaining())

		taker.Filled += qty
		maker.Filled += qty
		best.ReduceQty(qty)

		b.tradeSeq++
		trades = append(trades, Trade{
			MakerID: maker.ID,
			TakerID: taker.ID,
			Symbol:  b.Symbol,
			Price:   maker.Price,
			Qty:     qty,
			Seq:     b.tradeSeq,
		})

		if maker.Remaining() == 0 {
			maker.Status = Filled
			best.PopHead()
			delete(b.index, maker.ID)
			b.retired = append(b.retired, maker)
			if best.Empty() {
				opp.Delete(best.Price)
			}
		} else {
			maker.Status = PartiallyFilled
		}
	}
	return trades
}

func (b *OrderBook) bestOpposing(side Side, opp *RBTree) *PriceLevel {
	if side == Buy {
		return opp.BestMin() // lowest ask
	}
	return opp.BestMax() // highest bid
}

func (b *OrderBook) sideTree(side Side) *RBTree {
	if side == Buy {
		return b.Bids
	}
	return b.Asks
}

func (b *OrderBook) crossed() bool {
	bb := b.Bids.BestMax()
	ba := b.Asks.BestMin()
	return bb != nil && ba != nil && bb.Price >= ba.Price
}

func marketable(taker *Order, restingPrice int64) bool {
	if taker.Side == Buy {
		return restingPrice <= taker.Price
	}
	return restingPrice >= taker.Price
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
