package orderbook

type Side uint8
type OrderType uint8
type Status uint8

const (
	Buy Side = iota
	Sell
)

const (
	Limit OrderType = iota
	// Market matches at any price and never rests.
	Market
)

const (
	New Status = iota
	PartiallyFilled
	Filled
	Cancelled
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

func (t OrderType) String() string {
	if t == Market {
		return "MARKET"
	}
	return "LIMIT"
}

func (st Status) String() string {
	switch st {
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "NEW"
	}
}

// Order is owned by exactly one book once placed.
// Price is in ticks (1e-8 of the quote unit), Qty in lots.
// Seq is the per-symbol admission sequence, not wall clock.
// Only Filled and Status mutate after admission.
type Order struct {
	ID     uint64
	Symbol string
	Side   Side
	Type   OrderType
	Price  int64
	Qty    int64
	Filled int64
	Seq    uint64
	Status Status

	next *Order
	prev *Order
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// Reset satisfies memory pooling; links must not leak across reuse.
func (o *Order) Reset() { *o = Order{} }
