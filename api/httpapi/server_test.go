package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orderable/matchcore/domain/market"
	"github.com/orderable/matchcore/engine"
	"github.com/orderable/matchcore/infra/sequence"
	"github.com/orderable/matchcore/infra/wal"
	"github.com/orderable/matchcore/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := market.NewRegistry()
	reg.Add("BTC-USDT", market.Params{})

	journal, err := wal.Open(wal.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	gw := engine.NewGateway(engine.Config{}, zap.NewNop())
	t.Cleanup(gw.Close)

	pub := service.NewPublisher(nil, nil, sequence.New(0), zap.NewNop())
	svc := service.NewOrderService(market.NewValidator(reg), gw, journal, sequence.New(0), pub, zap.NewNop())

	return NewServer(svc, reg, zap.NewNop())
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPlaceAndDepth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/orders", PlaceOrderRequest{
		Symbol: "BTC-USDT", Side: "BUY", Price: "100.5", Qty: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var placed PlaceOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	assert.NotZero(t, placed.OrderID)
	assert.Equal(t, "NEW", placed.Status)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/markets/BTC-USDT/depth", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var depth DepthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &depth))
	require.Len(t, depth.Bids, 1)
	assert.Equal(t, "100.5", depth.Bids[0].Price)
	assert.Equal(t, int64(10), depth.Bids[0].Qty)
}

func TestPlaceProducesTrades(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/orders", PlaceOrderRequest{
		Symbol: "BTC-USDT", Side: "SELL", Price: "100", Qty: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/orders", PlaceOrderRequest{
		Symbol: "BTC-USDT", Side: "BUY", Price: "100", Qty: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var placed PlaceOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	assert.Equal(t, "FILLED", placed.Status)
	require.Len(t, placed.Trades, 1)
	assert.Equal(t, "100", placed.Trades[0].Price)
}

func TestPlaceRejectedIsBadRequest(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/orders", PlaceOrderRequest{
		Symbol: "BTC-USDT", Side: "BUY", Price: "-5", Qty: 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/orders", PlaceOrderRequest{
		Symbol: "NOPE", Side: "BUY", Price: "1", Qty: 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelUnknownIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/orders/cancel", CancelOrderRequest{
		Symbol: "BTC-USDT", OrderID: 42,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepthUnknownSymbol(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/markets/NOPE/depth", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketsAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/markets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var markets []MarketInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &markets))
	require.Len(t, markets, 1)
	assert.Equal(t, "BTC-USDT", markets[0].Symbol)
	assert.False(t, markets[0].Halted)

	rec = doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
