package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/orderable/matchcore/engine"
)

const fileName = "snapshot.bin"

type Writer struct {
	Dir string
}

// Write persists the given per-symbol snapshots atomically: it writes
// to a temp file and renames over the previous snapshot.
func (w *Writer) Write(globalSeq, eventSeq uint64, snaps []engine.SymbolSnapshot) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	s := Snapshot{
		GlobalSeq: globalSeq,
		EventSeq:  eventSeq,
		Created:   time.Now(),
		Symbols:   make([]SymbolState, 0, len(snaps)),
	}
	for _, snap := range snaps {
		st := SymbolState{
			Symbol:   snap.Symbol,
			Seq:      snap.Seq,
			TradeSeq: snap.TradeSeq,
			Halted:   snap.Halted,
			Orders:   make([]OrderEntry, 0, len(snap.Orders)),
		}
		for _, o := range snap.Orders {
			st.Orders = append(st.Orders, OrderEntry{
				ID:     o.ID,
				Side:   uint8(o.Side),
				Type:   uint8(o.Type),
				Price:  o.Price,
				Qty:    o.Qty,
				Filled: o.Filled,
				Seq:    o.Seq,
			})
		}
		s.Symbols = append(s.Symbols, st)
	}

	tmp := filepath.Join(w.Dir, fileName+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(&s); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(w.Dir, fileName))
}
