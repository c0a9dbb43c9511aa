package market

import (
	"github.com/shopspring/decimal"

	"github.com/orderable/matchcore/domain/orderbook"
)

// PriceScale is the number of fractional digits carried by a price
// tick. Prices arrive as decimal strings and leave as int64 ticks.
const PriceScale = 8

// RawOrder is an order as received from the transport layer, before
// any checking or unit conversion.
type RawOrder struct {
	Symbol string
	Side   string
	Type   string
	Price  string
	Qty    int64
}

// ValidOrder is an admitted order in engine units. ID and Seq are
// assigned later, at sequencing.
type ValidOrder struct {
	Symbol string
	Side   orderbook.Side
	Type   orderbook.OrderType
	Price  int64
	Qty    int64
}

// Validator checks raw orders against the registry. Checks run in a
// fixed order and the first violation wins.
type Validator struct {
	registry *Registry
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// KnownSymbol reports whether the symbol is listed. Commands that only
// reference a symbol, like cancellations, are checked with this before
// they are sequenced.
func (v *Validator) KnownSymbol(symbol string) bool {
	_, ok := v.registry.Lookup(symbol)
	return ok
}

func (v *Validator) Validate(raw RawOrder) (ValidOrder, error) {
	if raw.Symbol == "" {
		return ValidOrder{}, &ValidationError{Reason: ErrUnknownSymbol}
	}
	params, ok := v.registry.Lookup(raw.Symbol)
	if !ok {
		return ValidOrder{}, &ValidationError{Reason: ErrUnknownSymbol}
	}

	side, err := ParseSide(raw.Side)
	if err != nil {
		return ValidOrder{}, &ValidationError{Reason: err}
	}

	otype, err := ParseType(raw.Type)
	if err != nil {
		return ValidOrder{}, &ValidationError{Reason: err}
	}

	var ticks int64
	if otype == orderbook.Market {
		// Market orders carry no limit price.
		ticks = 0
	} else {
		ticks, err = ParsePrice(raw.Price)
		if err != nil {
			return ValidOrder{}, &ValidationError{Reason: err}
		}
		if params.TickSize > 0 && ticks%params.TickSize != 0 {
			return ValidOrder{}, &ValidationError{Reason: ErrPriceTick}
		}
	}

	if raw.Qty <= 0 {
		return ValidOrder{}, &ValidationError{Reason: ErrInvalidQuantity}
	}
	if params.LotSize > 0 && raw.Qty%params.LotSize != 0 {
		return ValidOrder{}, &ValidationError{Reason: ErrQuantityLot}
	}

	return ValidOrder{
		Symbol: raw.Symbol,
		Side:   side,
		Type:   otype,
		Price:  ticks,
		Qty:    raw.Qty,
	}, nil
}

// ParsePrice converts a decimal price string to int64 ticks. The price
// must be positive and carry at most PriceScale fractional digits.
func ParsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	if d.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	scaled := d.Shift(PriceScale)
	if !scaled.IsInteger() {
		return 0, ErrPricePrecision
	}
	if !scaled.BigInt().IsInt64() {
		return 0, ErrInvalidPrice
	}
	return scaled.IntPart(), nil
}

// FormatPrice renders int64 ticks back to the wire representation.
func FormatPrice(ticks int64) string {
	return decimal.New(ticks, -PriceScale).String()
}

func ParseSide(s string) (orderbook.Side, error) {
	switch s {
	case "BUY":
		return orderbook.Buy, nil
	case "SELL":
		return orderbook.Sell, nil
	default:
		return 0, ErrInvalidSide
	}
}

// ParseType treats an empty type as Limit, the default.
func ParseType(s string) (orderbook.OrderType, error) {
	switch s {
	case "", "LIMIT":
		return orderbook.Limit, nil
	case "MARKET":
		return orderbook.Market, nil
	default:
		return 0, ErrInvalidType
	}
}
