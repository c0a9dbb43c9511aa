package orderbook

// Trade is created only by a matching pass and never mutated.
// Price is the maker's price. Seq is the per-book trade sequence,
// strictly increasing per symbol.
type Trade struct {
	MakerID uint64
	TakerID uint64
	Symbol  string
	Price   int64
	Qty     int64
	Seq     uint64
}
