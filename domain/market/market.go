// Package market holds the symbol registry and order admission checks.
// Validation is pure: it either produces an order in engine units or a
// ValidationError, and touches no shared state.
package market

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrInvalidSide     = errors.New("invalid side")
	ErrInvalidType     = errors.New("invalid order type")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrPricePrecision  = errors.New("price precision exceeds 8 fractional digits")
	ErrPriceTick       = errors.New("price not aligned to tick size")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrQuantityLot     = errors.New("quantity not aligned to lot size")
)

// ValidationError wraps the first violated check. Recoverable: the
// caller corrects the order and resubmits.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order rejected: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// Params are per-symbol admission rules. TickSize and LotSize are in
// engine units (price ticks, quantity lots); zero means unconstrained.
type Params struct {
	TickSize int64
	LotSize  int64
}

// Registry is the set of tradable symbols. It is built once at startup
// and read-only afterwards.
type Registry struct {
	symbols map[string]Params
}

func NewRegistry() *Registry {
	return &Registry{symbols: make(map[string]Params)}
}

func (r *Registry) Add(symbol string, p Params) {
	r.symbols[symbol] = p
}

func (r *Registry) Lookup(symbol string) (Params, bool) {
	p, ok := r.symbols[symbol]
	return p, ok
}

func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	return out
}
