package orderbook

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/novaxchg/matching-engine/internal/domain"
)

// OrderBook maintains the buy (bid) and sell (ask) sides of one symbol's
// market.
//
// Architecture:
//
//	                    OrderBook
//	                        │
//	       ┌────────────────┴────────────────┐
//	       │                                 │
//	    Bids (RBTree)                   Asks (RBTree)
//	    descending=true                 descending=false
//	       │                                 │
//	    PriceLevel                       PriceLevel
//	    (sorted high→low)                (sorted low→high)
//	       │                                 │
//	    OrderQueue                       OrderQueue
//	    (FIFO linked list)               (FIFO linked list)
//
// Two red-black trees give O(1) best-bid/best-ask via cached min/max
// pointers and O(log P) insert/delete where P is the number of distinct
// price levels. A FIFO queue at each level enforces time priority among
// orders resting at the same price. An order-ID map gives O(1) cancel.
//
// OrderBook is not safe for concurrent use; it is owned exclusively by the
// single matching goroutine, per the engine's thread-confinement rule.
type OrderBook struct {
	symbol string
	bids   *RBTree
	asks   *RBTree
	orders map[uint64]*OrderNode
}

// NewOrderBook creates a new order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   NewRBTree(true),  // descending: true (highest price first)
		asks:   NewRBTree(false), // descending: false (lowest price first)
		orders: make(map[uint64]*OrderNode),
	}
}

// Symbol returns the symbol this order book is for.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// AddOrder rests an order on the appropriate side of the book.
// Time complexity: O(log P) where P = number of price levels.
func (ob *OrderBook) AddOrder(order domain.Order) error {
	if _, exists := ob.orders[order.OrderID]; exists {
		return fmt.Errorf("order %d already exists", order.OrderID)
	}

	tree := ob.getTree(order.Side)

	level := tree.Get(order.Price)
	if level == nil {
		level = NewPriceLevel(order.Price)
		tree.Insert(level)
	}

	node := level.Append(order)
	ob.orders[order.OrderID] = node

	return nil
}

// CancelOrder removes an order from the book.
// Returns the cancelled order and true, or false if not found.
// Time complexity: O(1) for the removal, O(log P) if the price level empties.
func (ob *OrderBook) CancelOrder(orderID uint64) (domain.Order, bool) {
	node, exists := ob.orders[orderID]
	if !exists {
		return domain.Order{}, false
	}

	order := node.Order
	level := node.level
	tree := ob.getTree(order.Side)

	level.Remove(node)
	delete(ob.orders, orderID)

	if level.IsEmpty() {
		tree.Delete(level.Price)
	}

	return order, true
}

// GetOrder retrieves an order by ID.
// Time complexity: O(1)
func (ob *OrderBook) GetOrder(orderID uint64) (domain.Order, bool) {
	node, exists := ob.orders[orderID]
	if !exists {
		return domain.Order{}, false
	}
	return node.Order, true
}

// GetBestBid returns the highest bid price level, or nil if no bids.
func (ob *OrderBook) GetBestBid() *PriceLevel {
	return ob.bids.Min()
}

// GetBestAsk returns the lowest ask price level, or nil if no asks.
func (ob *OrderBook) GetBestAsk() *PriceLevel {
	return ob.asks.Min()
}

// GetSpread returns the difference between best ask and best bid.
// Returns a zero decimal if either side is empty.
func (ob *OrderBook) GetSpread() decimal.Decimal {
	bestBid := ob.GetBestBid()
	bestAsk := ob.GetBestAsk()
	if bestBid == nil || bestAsk == nil {
		return decimal.Zero
	}
	return bestAsk.Price.Sub(bestBid.Price)
}

// GetMidPrice returns the midpoint between best bid and ask.
// Returns a zero decimal if either side is empty.
func (ob *OrderBook) GetMidPrice() decimal.Decimal {
	bestBid := ob.GetBestBid()
	bestAsk := ob.GetBestAsk()
	if bestBid == nil || bestAsk == nil {
		return decimal.Zero
	}
	return bestBid.Price.Add(bestAsk.Price).Div(decimal.NewFromInt(2))
}

// BidLevels returns the number of distinct bid price levels.
func (ob *OrderBook) BidLevels() int {
	return ob.bids.Size()
}

// AskLevels returns the number of distinct ask price levels.
func (ob *OrderBook) AskLevels() int {
	return ob.asks.Size()
}

// TotalOrders returns the total number of resting orders in the book.
func (ob *OrderBook) TotalOrders() int {
	return len(ob.orders)
}

// ActiveOrders returns every order still resting in the book, in no
// particular order. Intended for tests and diagnostics, not the hot path.
func (ob *OrderBook) ActiveOrders() []domain.Order {
	result := make([]domain.Order, 0, len(ob.orders))
	for _, node := range ob.orders {
		result = append(result, node.Order)
	}
	return result
}

// GetBidDepth returns the top N bid price levels. If levels <= 0, returns
// all levels.
func (ob *OrderBook) GetBidDepth(levels int) []*PriceLevel {
	return ob.getDepth(ob.bids, levels)
}

// GetAskDepth returns the top N ask price levels. If levels <= 0, returns
// all levels.
func (ob *OrderBook) GetAskDepth(levels int) []*PriceLevel {
	return ob.getDepth(ob.asks, levels)
}

func (ob *OrderBook) getDepth(tree *RBTree, maxLevels int) []*PriceLevel {
	result := make([]*PriceLevel, 0)
	count := 0

	tree.ForEach(func(level *PriceLevel) bool {
		result = append(result, level)
		count++
		if maxLevels > 0 && count >= maxLevels {
			return false
		}
		return true
	})

	return result
}

// ApplyFill reduces the resting order's remaining quantity by fillQty. If
// the order becomes fully filled it is removed from the book; otherwise the
// head node's order value (and the level's TotalQty) is updated in place so
// FIFO position is preserved. Returns the updated order.
func (ob *OrderBook) ApplyFill(orderID uint64, fillQty int64) (domain.Order, error) {
	node, exists := ob.orders[orderID]
	if !exists {
		return domain.Order{}, fmt.Errorf("order %d not found", orderID)
	}

	updated := node.Order.WithFill(fillQty)

	if updated.Status == domain.OrderStatusFilled {
		level := node.level
		tree := ob.getTree(updated.Side)
		level.Remove(node)
		delete(ob.orders, orderID)
		if level.IsEmpty() {
			tree.Delete(level.Price)
		}
		return updated, nil
	}

	node.Order = updated
	node.level.UpdateQuantityDelta(-fillQty)
	return updated, nil
}

// getTree returns the appropriate tree for the given side.
func (ob *OrderBook) getTree(side domain.Side) *RBTree {
	if side == domain.SideBuy {
		return ob.bids
	}
	return ob.asks
}

// String returns a human-readable representation of the order book.
func (ob *OrderBook) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== %s Order Book ===\n", ob.symbol))

	asks := ob.GetAskDepth(5)
	sb.WriteString("ASKS:\n")
	for i := len(asks) - 1; i >= 0; i-- {
		level := asks[i]
		sb.WriteString(fmt.Sprintf("  %s: %d shares (%d orders)\n",
			level.Price.String(), level.TotalQty, level.Count()))
	}

	spread := ob.GetSpread()
	if spread.IsPositive() {
		sb.WriteString(fmt.Sprintf("--- Spread: %s ---\n", spread.String()))
	} else {
		sb.WriteString("--- No Spread ---\n")
	}

	bids := ob.GetBidDepth(5)
	sb.WriteString("BIDS:\n")
	for _, level := range bids {
		sb.WriteString(fmt.Sprintf("  %s: %d shares (%d orders)\n",
			level.Price.String(), level.TotalQty, level.Count()))
	}

	return sb.String()
}
