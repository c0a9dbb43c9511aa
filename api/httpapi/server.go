package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/orderable/matchcore/domain/market"
	"github.com/orderable/matchcore/domain/orderbook"
	"github.com/orderable/matchcore/engine"
	"github.com/orderable/matchcore/service"
)

// Server is a thin HTTP adapter over the order service. All matching
// semantics live behind the service; this layer only translates wire
// JSON and maps the error taxonomy onto status codes.
type Server struct {
	svc      *service.OrderService
	registry *market.Registry
	router   *mux.Router
	log      *zap.Logger
}

func NewServer(svc *service.OrderService, reg *market.Registry, log *zap.Logger) *Server {
	s := &Server{
		svc:      svc,
		registry: reg,
		router:   mux.NewRouter(),
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{symbol}/depth", s.handleGetDepth).Methods("GET")

	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.log.Info("http server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Handler exposes the wrapped router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	symbols := s.registry.Symbols()

	response := make([]MarketInfo, 0, len(symbols))
	for _, sym := range symbols {
		p, _ := s.registry.Lookup(sym)
		response = append(response, MarketInfo{
			Symbol:   sym,
			TickSize: market.FormatPrice(p.TickSize),
			LotSize:  p.LotSize,
			Halted:   s.svc.Halted(sym),
		})
	}

	respondJSON(w, response)
}

func (s *Server) handleGetDepth(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if _, ok := s.registry.Lookup(symbol); !ok {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}

	d, err := s.svc.BookDepth(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	respondJSON(w, DepthResponse{
		Symbol: symbol,
		Bids:   toLevels(d.Bids),
		Asks:   toLevels(d.Asks),
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := s.svc.PlaceOrder(r.Context(), market.RawOrder{
		Symbol: req.Symbol,
		Side:   req.Side,
		Type:   req.Type,
		Price:  req.Price,
		Qty:    req.Qty,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	trades := make([]TradeInfo, len(res.Trades))
	for i, t := range res.Trades {
		trades[i] = TradeInfo{
			MakerID: t.MakerID,
			TakerID: t.TakerID,
			Price:   market.FormatPrice(t.Price),
			Qty:     t.Qty,
		}
	}

	respondJSON(w, PlaceOrderResponse{
		OrderID: res.Order.ID,
		Status:  res.Order.Status.String(),
		Trades:  trades,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := s.svc.CancelOrder(r.Context(), service.CancelOrder{
		Symbol:  req.Symbol,
		OrderID: req.OrderID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	respondJSON(w, CancelOrderResponse{
		OrderID: res.Order.ID,
		Status:  res.Order.Status.String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

// writeError maps service errors onto HTTP status codes. Rejected
// orders are client errors; a saturated or halted symbol is reported
// as unavailable so callers know to back off.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ee *orderbook.EngineError

	switch {
	case service.IsValidationError(err):
		respondError(w, http.StatusBadRequest, "order rejected", err.Error())
	case errors.Is(err, orderbook.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not found", "")
	case errors.Is(err, engine.ErrBusy):
		respondError(w, http.StatusServiceUnavailable, "symbol busy", "")
	case errors.Is(err, engine.ErrHalted):
		respondError(w, http.StatusServiceUnavailable, "symbol halted", "")
	case errors.As(err, &ee):
		s.log.Error("engine fault surfaced", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "engine fault", "")
	default:
		s.log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func toLevels(in []service.DepthLevel) []PriceLevel {
	out := make([]PriceLevel, len(in))
	for i, l := range in {
		out[i] = PriceLevel{Price: market.FormatPrice(l.Price), Qty: l.Qty}
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}
