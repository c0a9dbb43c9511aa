// Package snapshot persists a point-in-time view of every book so the
// intake journal can be truncated. Snapshots are an optimization: the
// journal alone is sufficient to rebuild state.
package snapshot

import "time"

type Snapshot struct {
	// GlobalSeq is the intake sequence covered by this snapshot;
	// journal records at or below it are already reflected here.
	GlobalSeq uint64
	// EventSeq is the last event sequence issued before the snapshot.
	EventSeq uint64
	Created  time.Time
	Symbols  []SymbolState
}

type SymbolState struct {
	Symbol   string
	Seq      uint64
	TradeSeq uint64
	Halted   bool
	Orders   []OrderEntry
}

type OrderEntry struct {
	ID     uint64
	Side   uint8
	Type   uint8
	Price  int64
	Qty    int64
	Filled int64
	Seq    uint64
}
