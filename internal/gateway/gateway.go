// Package gateway is the HTTP front door to the matching core: a thin
// net/http JSON API that decodes a request, claims a slot on the input
// ring, and waits for the engine.Processor to answer it. It is the single
// producer against the input ring - every HTTP handler goroutine running
// handleOrders, handleOrderByID or handleBook shares the one
// gateway.Gateway instance, and its
// Sequencer.Next/TryNext calls are only ever made from those goroutines,
// never from the processor side.
//
// Grounded on the teacher's cmd/server/main.go Server/handleOrder/
// handleCancel: the same decode-validate-submit-wait-respond shape, ported
// from the teacher's CAS-based disruptor.Sequencer onto this repository's
// single-producer ring.Sequencer, and from fixed-point cents onto
// decimal.Decimal. Client-supplied correlation IDs are new: the teacher had
// no request-tracing concept, so this is grounded instead on the
// google/uuid usage elsewhere in the example pack's HTTP-facing services.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/novaxchg/matching-engine/internal/domain"
	"github.com/novaxchg/matching-engine/internal/engine"
	"github.com/novaxchg/matching-engine/internal/ring"
)

// Gateway is the HTTP-facing producer for the input ring.
type Gateway struct {
	rb        *ring.RingBuffer[engine.Request]
	sequencer *ring.Sequencer
	logger    *zap.Logger
	timeout   time.Duration
}

// NewGateway builds a Gateway that publishes onto rb via sequencer.
func NewGateway(rb *ring.RingBuffer[engine.Request], sequencer *ring.Sequencer, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{rb: rb, sequencer: sequencer, logger: logger, timeout: 5 * time.Second}
}

// Mux builds the HTTP route table.
func (g *Gateway) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", g.handleOrders)
	mux.HandleFunc("/orders/", g.handleOrderByID)
	mux.HandleFunc("/book", g.handleBook)
	mux.HandleFunc("/health", g.handleHealth)
	return mux
}

// orderRequest is the wire shape of POST /orders.
type orderRequest struct {
	UserID        string `json:"user_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	Price         string `json:"price,omitempty"`
	Quantity      int64  `json:"quantity"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// orderResponse is the wire shape returned for every order submission.
type orderResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Success       bool            `json:"success"`
	OrderID       uint64          `json:"order_id,omitempty"`
	Status        string          `json:"status,omitempty"`
	FilledQty     int64           `json:"filled_qty,omitempty"`
	RemainingQty  int64           `json:"remaining_qty,omitempty"`
	Trades        []tradeResponse `json:"trades,omitempty"`
	RejectReason  string          `json:"reject_reason,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type tradeResponse struct {
	TradeID  uint64 `json:"trade_id"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

func (g *Gateway) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, orderResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	order, err := parseOrder(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, orderResponse{CorrelationID: correlationID, Error: err.Error()})
		return
	}

	responseCh := make(chan engine.Response, 1)
	request := engine.Request{Kind: engine.RequestSubmitOrder, Order: order, ResponseCh: responseCh}

	seq, ok := g.sequencer.TryNext()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, orderResponse{CorrelationID: correlationID, Error: "input ring full, retry"})
		return
	}
	*g.rb.Get(seq) = request
	g.sequencer.Publish(seq)

	select {
	case resp := <-responseCh:
		writeJSON(w, http.StatusOK, toOrderResponse(correlationID, resp))
	case <-time.After(g.timeout):
		g.logger.Warn("order processing timeout", zap.String("correlation_id", correlationID))
		writeJSON(w, http.StatusGatewayTimeout, orderResponse{CorrelationID: correlationID, Error: "processing timeout"})
	}
}

func (g *Gateway) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol, orderID, err := parseOrderPath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	responseCh := make(chan engine.Response, 1)
	request := engine.Request{Kind: engine.RequestCancelOrder, Symbol: symbol, OrderID: orderID, ResponseCh: responseCh}

	seq, ok := g.sequencer.TryNext()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "input ring full, retry"})
		return
	}
	*g.rb.Get(seq) = request
	g.sequencer.Publish(seq)

	select {
	case resp := <-responseCh:
		if !resp.Success {
			errMsg := resp.RejectReason
			if resp.Err != nil {
				errMsg = resp.Err.Error()
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": errMsg})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"order_id":      resp.Order.OrderID,
			"status":        resp.Order.Status.String(),
			"remaining_qty": resp.Order.RemainingQuantity,
		})
	case <-time.After(g.timeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "processing timeout"})
	}
}

func (g *Gateway) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol required"})
		return
	}

	levels := 10
	if l := r.URL.Query().Get("levels"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			levels = parsed
		}
	}

	responseCh := make(chan engine.Response, 1)
	request := engine.Request{Kind: engine.RequestQueryBook, Symbol: symbol, DepthLevels: levels, ResponseCh: responseCh}

	seq, ok := g.sequencer.TryNext()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "input ring full, retry"})
		return
	}
	*g.rb.Get(seq) = request
	g.sequencer.Publish(seq)

	select {
	case resp := <-responseCh:
		if !resp.Success || resp.Book == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "symbol not found"})
			return
		}
		writeJSON(w, http.StatusOK, resp.Book)
	case <-time.After(g.timeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "processing timeout"})
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func parseOrder(req orderRequest) (domain.Order, error) {
	var side domain.Side
	switch req.Side {
	case "buy", "BUY":
		side = domain.SideBuy
	case "sell", "SELL":
		side = domain.SideSell
	default:
		return domain.Order{}, fmt.Errorf("invalid side: must be 'buy' or 'sell'")
	}

	var orderType domain.OrderType
	switch req.Type {
	case "market", "MARKET":
		orderType = domain.OrderTypeMarket
	case "limit", "LIMIT":
		orderType = domain.OrderTypeLimit
	default:
		return domain.Order{}, fmt.Errorf("invalid type: must be 'market' or 'limit'")
	}

	tif := domain.TimeInForceGTC
	switch req.TimeInForce {
	case "", "GTC", "gtc":
		tif = domain.TimeInForceGTC
	case "IOC", "ioc":
		tif = domain.TimeInForceIOC
	case "FOK", "fok":
		tif = domain.TimeInForceFOK
	default:
		return domain.Order{}, fmt.Errorf("invalid time_in_force: must be 'GTC', 'IOC', or 'FOK'")
	}

	if req.Quantity <= 0 {
		return domain.Order{}, fmt.Errorf("quantity must be positive")
	}

	var price decimal.Decimal
	if orderType == domain.OrderTypeLimit {
		if req.Price == "" {
			return domain.Order{}, fmt.Errorf("price required for limit orders")
		}
		var err error
		price, err = decimal.NewFromString(req.Price)
		if err != nil {
			return domain.Order{}, fmt.Errorf("invalid price: %w", err)
		}
	}

	if req.UserID == "" {
		return domain.Order{}, fmt.Errorf("user_id required")
	}
	if req.Symbol == "" {
		return domain.Order{}, fmt.Errorf("symbol required")
	}

	return domain.Order{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Type:        orderType,
		Side:        side,
		Price:       price,
		Quantity:    req.Quantity,
		TimeInForce: tif,
	}, nil
}

func parseOrderPath(path string) (symbol string, orderID uint64, err error) {
	trimmed := strings.TrimPrefix(path, "/orders/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", 0, fmt.Errorf("path must be /orders/{symbol}/{order_id}")
	}

	orderID, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid order_id: %w", err)
	}
	return parts[0], orderID, nil
}

func toOrderResponse(correlationID string, resp engine.Response) orderResponse {
	trades := make([]tradeResponse, len(resp.Trades))
	for i, t := range resp.Trades {
		trades[i] = tradeResponse{TradeID: t.TradeID, Price: t.Price.String(), Quantity: t.Quantity}
	}
	return orderResponse{
		CorrelationID: correlationID,
		Success:       resp.Success,
		OrderID:       resp.Order.OrderID,
		Status:        resp.Order.Status.String(),
		FilledQty:     resp.Order.FilledQuantity(),
		RemainingQty:  resp.Order.RemainingQuantity,
		Trades:        trades,
		RejectReason:  resp.RejectReason,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
