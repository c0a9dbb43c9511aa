package httpapi

// PlaceOrderRequest is the wire form of a new order. Price is a decimal
// string so callers never deal in engine ticks.
type PlaceOrderRequest struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Type   string `json:"type,omitempty"`
	Price  string `json:"price,omitempty"`
	Qty    int64  `json:"qty"`
}

type PlaceOrderResponse struct {
	OrderID uint64      `json:"orderId"`
	Status  string      `json:"status"`
	Trades  []TradeInfo `json:"trades,omitempty"`
}

type CancelOrderRequest struct {
	Symbol  string `json:"symbol"`
	OrderID uint64 `json:"orderId"`
}

type CancelOrderResponse struct {
	OrderID uint64 `json:"orderId"`
	Status  string `json:"status"`
}

type TradeInfo struct {
	MakerID uint64 `json:"makerId"`
	TakerID uint64 `json:"takerId"`
	Price   string `json:"price"`
	Qty     int64  `json:"qty"`
}

type PriceLevel struct {
	Price string `json:"price"`
	Qty   int64  `json:"qty"`
}

type DepthResponse struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

type MarketInfo struct {
	Symbol   string `json:"symbol"`
	TickSize string `json:"tickSize"`
	LotSize  int64  `json:"lotSize"`
	Halted   bool   `json:"halted"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
