// Package domain defines the core value types shared by every component of
// the matching core: markets, orders, trades and the event journal. These
// types are immutable once published — a fill or a status change produces a
// new value rather than mutating a shared one, so they can be handed to
// parallel output consumers without synchronization.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies which side of the book an order belongs to.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the order's execution semantics. Only Market and Limit are
// realized by the matching engine; Stop and StopLimit are reserved.
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeStop:
		return "STOP"
	case OrderTypeStopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls what happens to an order's residual quantity after
// the matching pass.
type TimeInForce int

const (
	// TimeInForceGTC rests the residual in the book until filled or cancelled.
	TimeInForceGTC TimeInForce = iota
	// TimeInForceIOC matches what it can immediately, then discards the rest.
	TimeInForceIOC
	// TimeInForceFOK requires the full quantity to fill immediately or the
	// order is cancelled with zero trades.
	TimeInForceFOK
)

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus is the order's current lifecycle state.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Order is an immutable order record. Every mutation — a fill, a status
// transition — produces a new Order value via one of the With* methods
// rather than editing an existing one in place.
type Order struct {
	OrderID           uint64
	UserID            string
	Symbol            string
	Type              OrderType
	Side              Side
	Price             decimal.Decimal // zero value for MARKET orders
	Quantity          int64
	RemainingQuantity int64
	Status            OrderStatus
	Timestamp         time.Time
	TimeInForce       TimeInForce
}

// FilledQuantity returns how much of the order has executed so far.
func (o Order) FilledQuantity() int64 {
	return o.Quantity - o.RemainingQuantity
}

// IsActive reports whether the order can still rest in or be matched
// against the book.
func (o Order) IsActive() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPartiallyFilled
}

// WithFill returns a copy of the order with qty filled and status updated
// accordingly. qty must not exceed RemainingQuantity.
func (o Order) WithFill(qty int64) Order {
	next := o
	next.RemainingQuantity -= qty
	if next.RemainingQuantity == 0 {
		next.Status = OrderStatusFilled
	} else {
		next.Status = OrderStatusPartiallyFilled
	}
	return next
}

// WithStatus returns a copy of the order with a new terminal status.
func (o Order) WithStatus(status OrderStatus) Order {
	next := o
	next.Status = status
	return next
}

func (o Order) String() string {
	return fmt.Sprintf("Order{id:%d %s %s %s qty=%d rem=%d status=%s}",
		o.OrderID, o.Side, o.Symbol, o.Price, o.Quantity, o.RemainingQuantity, o.Status)
}

// Trade is an immutable record of a single execution between a buy and a
// sell order. Price is always the resting order's price.
type Trade struct {
	TradeID       uint64
	BuyOrderID    uint64
	SellOrderID   uint64
	BuyUserID     string
	SellUserID    string
	Symbol        string
	Price         decimal.Decimal
	Quantity      int64
	AggressorSide Side // the taker's side: the order that arrived and crossed the spread
	Timestamp     time.Time
}
