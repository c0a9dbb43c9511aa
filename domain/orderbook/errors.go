package orderbook

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a cancel for an order the book does not hold.
// It is a normal outcome, not a corruption signal.
var ErrNotFound = errors.New("order not found")

// EngineError reports a violated book invariant. It is a programming
// defect signal: the affected symbol must stop matching until the book
// is inspected.
type EngineError struct {
	Symbol string
	Seq    uint64
	Reason string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf(
		"engine invariant violated: %s (symbol=%s seq=%d)",
		e.Reason, e.Symbol, e.Seq,
	)
}
