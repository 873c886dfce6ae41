// Package matching implements the order matching engine.
//
// The matching engine is the heart of the exchange. It matches an incoming
// order against resting orders in a symbol's order book using price-time
// priority (FIFO at each price level).
//
// Architecture: Single-Threaded Core (LMAX Disruptor Pattern)
//
// Why single-threaded?
// 1. Determinism: same input sequence always produces the same output
// 2. No locks: eliminates contention in the hot path
// 3. Replay: state can be rebuilt by replaying the event journal
// 4. Simplicity: no race conditions to debug
//
// Matching is CPU-bound, not I/O-bound, so parallelism doesn't help here -
// it only adds synchronization overhead. Engine is driven exclusively by
// the single processor goroutine behind the input ring; it has no locks of
// its own.
package matching

import (
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/novaxchg/matching-engine/internal/domain"
	"github.com/novaxchg/matching-engine/internal/orderbook"
)

// Result is the outcome of processing one incoming order.
type Result struct {
	Order        domain.Order
	Trades       []domain.Trade
	Accepted     bool
	RejectReason string
	RestingQty   int64
}

// Engine is the single-threaded order matching engine. It owns one
// OrderBook per symbol and the monotonic ID counters that back them.
//
// Thread safety: ProcessOrder and CancelOrder must only ever be called from
// the single goroutine that owns the engine. External synchronization is
// handled upstream by the ring buffer that feeds requests to that goroutine.
type Engine struct {
	orderBooks map[string]*orderbook.OrderBook
	tradeID    uint64
	orderID    uint64
}

// NewEngine creates a new matching engine with no symbols registered.
func NewEngine() *Engine {
	return &Engine{
		orderBooks: make(map[string]*orderbook.OrderBook),
	}
}

// AddSymbol registers a new tradable symbol with an empty order book.
func (e *Engine) AddSymbol(symbol string) {
	if _, exists := e.orderBooks[symbol]; !exists {
		e.orderBooks[symbol] = orderbook.NewOrderBook(symbol)
	}
}

// GetOrderBook returns the order book for a symbol, or nil if unregistered.
func (e *Engine) GetOrderBook(symbol string) *orderbook.OrderBook {
	return e.orderBooks[symbol]
}

// NextOrderID generates the next order ID. Safe to call ahead of
// submission since it only needs to be unique, not ordered with respect to
// the sequence the engine assigns internally.
func (e *Engine) NextOrderID() uint64 {
	return atomic.AddUint64(&e.orderID, 1)
}

func (e *Engine) nextTradeID() uint64 {
	return atomic.AddUint64(&e.tradeID, 1)
}

// ProcessOrder matches an incoming order against the book for its symbol
// and, for GTC limit orders with quantity left over, rests the remainder.
//
// Time complexity: O(M * log P) where M is the number of fills and P is the
// number of price levels touched.
func (e *Engine) ProcessOrder(order domain.Order) Result {
	result := Result{Order: order}

	book := e.orderBooks[order.Symbol]
	if book == nil {
		result.Order = order.WithStatus(domain.OrderStatusRejected)
		result.RejectReason = fmt.Sprintf("unknown symbol: %s", order.Symbol)
		return result
	}

	result.Accepted = true

	if order.TimeInForce == domain.TimeInForceFOK {
		if !e.canFillEntirely(order, book) {
			result.Order = order.WithStatus(domain.OrderStatusCancelled)
			result.RejectReason = "fill-or-kill: insufficient liquidity to fill entire quantity"
			return result
		}
	}

	trades, filled := e.matchOrder(order, book)
	result.Trades = trades
	order = filled
	result.Order = order

	remainingQty := order.RemainingQuantity
	if remainingQty == 0 {
		return result
	}

	switch {
	case order.Type == domain.OrderTypeMarket:
		result.Order = order.WithStatus(domain.OrderStatusCancelled)
		result.RejectReason = "insufficient liquidity"

	case order.TimeInForce == domain.TimeInForceIOC:
		result.Order = order.WithStatus(domain.OrderStatusCancelled)

	case order.TimeInForce == domain.TimeInForceFOK:
		// canFillEntirely already guaranteed a full match; reaching here
		// with quantity left over means the pre-scan and the real match
		// disagreed, which is an engine invariant violation.
		panic(fmt.Sprintf("fill-or-kill order %d left %d unfilled after a successful pre-scan", order.OrderID, remainingQty))

	default: // GTC limit order rests in the book
		if err := book.AddOrder(order); err != nil {
			panic(fmt.Sprintf("add resting order %d: %v", order.OrderID, err))
		}
		result.RestingQty = remainingQty
	}

	return result
}

// matchOrder walks the opposite side of the book in price-time priority,
// consuming resting liquidity until the order is filled or the book runs
// out of acceptable price levels.
func (e *Engine) matchOrder(order domain.Order, book *orderbook.OrderBook) ([]domain.Trade, domain.Order) {
	var trades []domain.Trade

	var getMatchLevel func() *orderbook.PriceLevel
	var priceAcceptable func(decimal.Decimal) bool

	if order.Side == domain.SideBuy {
		getMatchLevel = book.GetBestAsk
		priceAcceptable = func(bookPrice decimal.Decimal) bool {
			return order.Type == domain.OrderTypeMarket || bookPrice.LessThanOrEqual(order.Price)
		}
	} else {
		getMatchLevel = book.GetBestBid
		priceAcceptable = func(bookPrice decimal.Decimal) bool {
			return order.Type == domain.OrderTypeMarket || bookPrice.GreaterThanOrEqual(order.Price)
		}
	}

	for order.RemainingQuantity > 0 {
		level := getMatchLevel()
		if level == nil {
			break
		}
		if !priceAcceptable(level.Price) {
			break
		}

		for node := level.Head(); node != nil && order.RemainingQuantity > 0; {
			maker := node.Order
			fillQty := minInt64(order.RemainingQuantity, maker.RemainingQuantity)

			buyOrderID, sellOrderID := maker.OrderID, order.OrderID
			buyUserID, sellUserID := maker.UserID, order.UserID
			if order.Side == domain.SideBuy {
				buyOrderID, sellOrderID = order.OrderID, maker.OrderID
				buyUserID, sellUserID = order.UserID, maker.UserID
			}

			trade := domain.Trade{
				TradeID:       e.nextTradeID(),
				BuyOrderID:    buyOrderID,
				SellOrderID:   sellOrderID,
				BuyUserID:     buyUserID,
				SellUserID:    sellUserID,
				Symbol:        order.Symbol,
				Price:         level.Price, // maker's price: price improvement for the taker
				Quantity:      fillQty,
				AggressorSide: order.Side,
				Timestamp:     order.Timestamp,
			}
			trades = append(trades, trade)

			order = order.WithFill(fillQty)
			next := node.Next()

			if _, err := book.ApplyFill(maker.OrderID, fillQty); err != nil {
				panic(fmt.Sprintf("apply fill to resting order %d: %v", maker.OrderID, err))
			}

			node = next
		}

		if !level.IsEmpty() {
			break
		}
	}

	return trades, order
}

// canFillEntirely performs the fill-or-kill pre-scan: it sums resting
// quantity at acceptable price levels on the opposite side without mutating
// the book, and reports whether that sum covers the order's full quantity.
// This only tells the caller a full match is currently possible; the real
// match still has to run afterward to produce the trades.
func (e *Engine) canFillEntirely(order domain.Order, book *orderbook.OrderBook) bool {
	remaining := order.Quantity

	var levels []*orderbook.PriceLevel
	var priceOK func(decimal.Decimal) bool

	if order.Side == domain.SideBuy {
		levels = book.GetAskDepth(0)
		priceOK = func(p decimal.Decimal) bool {
			return order.Type == domain.OrderTypeMarket || p.LessThanOrEqual(order.Price)
		}
	} else {
		levels = book.GetBidDepth(0)
		priceOK = func(p decimal.Decimal) bool {
			return order.Type == domain.OrderTypeMarket || p.GreaterThanOrEqual(order.Price)
		}
	}

	for _, level := range levels {
		if !priceOK(level.Price) {
			break
		}
		if level.TotalQty >= remaining {
			return true
		}
		remaining -= level.TotalQty
	}

	return false
}

// CancelOrder removes a resting order from its book.
func (e *Engine) CancelOrder(symbol string, orderID uint64) (domain.Order, error) {
	book := e.orderBooks[symbol]
	if book == nil {
		return domain.Order{}, fmt.Errorf("unknown symbol: %s", symbol)
	}

	order, found := book.CancelOrder(orderID)
	if !found {
		return domain.Order{}, fmt.Errorf("order %d not found", orderID)
	}

	return order.WithStatus(domain.OrderStatusCancelled), nil
}

// GetOrder retrieves a resting order by symbol and ID.
func (e *Engine) GetOrder(symbol string, orderID uint64) (domain.Order, bool) {
	book := e.orderBooks[symbol]
	if book == nil {
		return domain.Order{}, false
	}
	return book.GetOrder(orderID)
}

// Symbols returns all registered symbols.
func (e *Engine) Symbols() []string {
	symbols := make([]string, 0, len(e.orderBooks))
	for s := range e.orderBooks {
		symbols = append(symbols, s)
	}
	return symbols
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
