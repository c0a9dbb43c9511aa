package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/orderable/matchcore/domain/orderbook"
	"github.com/orderable/matchcore/engine"
)

// Load reads the snapshot, if any, and returns the per-symbol state in
// gateway form. A missing snapshot is not an error: everything comes
// from the journal instead.
func Load(dir string) (*Snapshot, []engine.SymbolSnapshot, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, nil, err
	}

	snaps := make([]engine.SymbolSnapshot, 0, len(s.Symbols))
	for _, st := range s.Symbols {
		snap := engine.SymbolSnapshot{
			Symbol:   st.Symbol,
			Seq:      st.Seq,
			TradeSeq: st.TradeSeq,
			Halted:   st.Halted,
			Orders:   make([]orderbook.Order, 0, len(st.Orders)),
		}
		for _, e := range st.Orders {
			snap.Orders = append(snap.Orders, orderbook.Order{
				ID:     e.ID,
				Symbol: st.Symbol,
				Side:   orderbook.Side(e.Side),
				Type:   orderbook.OrderType(e.Type),
				Price:  e.Price,
				Qty:    e.Qty,
				Filled: e.Filled,
				Seq:    e.Seq,
			})
		}
		snaps = append(snaps, snap)
	}
	return &s, snaps, nil
}
