// Package events defines the event-sourcing types emitted by the matching
// processor and the on-disk diagnostic journal they are optionally written
// to.
//
// Event Sourcing Pattern:
// Instead of storing current state, the processor emits every state change
// (event) in order. The event journal kept in memory during a run is
// authoritative; the on-disk log in this package exists purely for
// post-mortem crash diagnosis, not for run-time recovery (see
// SPEC_FULL.md's persistence Non-goals) - a restart starts from an empty
// book, it does not replay this log.
//
// Per order transaction the processor emits exactly one OrderPlaced event,
// followed by zero or more TradeExecuted events (one per resulting trade),
// followed by one MarketDataUpdated event if and only if at least one
// trade occurred. Sequence numbers are gap-free and strictly increasing
// across the whole stream. Validation and market-state rejections
// (unknown symbol, closed market, invalid price/quantity) are returned to
// the caller synchronously and never reach the journal at all - they
// consume no sequence number and produce no event. Cancellation gets its
// own event kind, OrderCancelled, rather than silently mutating book state
// out of band.
package events

import (
	"time"

	"github.com/novaxchg/matching-engine/internal/domain"
)

// Kind identifies which payload an Event carries.
type Kind uint8

const (
	KindOrderPlaced Kind = iota + 1
	KindTradeExecuted
	KindMarketDataUpdated
	KindOrderCancelled
)

func (k Kind) String() string {
	switch k {
	case KindOrderPlaced:
		return "ORDER_PLACED"
	case KindTradeExecuted:
		return "TRADE_EXECUTED"
	case KindMarketDataUpdated:
		return "MARKET_DATA_UPDATED"
	case KindOrderCancelled:
		return "ORDER_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// OrderPlacedPayload records that an order was accepted or rejected by the
// processor and what happened to it (matched, rested, or refused).
type OrderPlacedPayload struct {
	Order        domain.Order
	RejectReason string
}

// TradeExecutedPayload records a single execution produced while matching
// one order.
type TradeExecutedPayload struct {
	Trade domain.Trade
}

// MarketDataUpdatedPayload records the best-bid/best-ask snapshot after a
// matching pass that produced at least one trade.
type MarketDataUpdatedPayload struct {
	Symbol     string
	BestBid    domain.Order // zero value if no bids
	BestBidQty int64
	BestAsk    domain.Order // zero value if no asks
	BestAskQty int64
	LastTrade  domain.Trade
}

// OrderCancelledPayload records that a resting order was removed from its
// book by an explicit cancel request.
type OrderCancelledPayload struct {
	Order domain.Order
}

// Event is a single entry in the journal. Go has no tagged-union types, so
// Kind selects which of the payload pointers is populated; exactly one is
// non-nil per Kind.
type Event struct {
	SequenceNum uint64
	Timestamp   time.Time
	Kind        Kind

	OrderPlaced       *OrderPlacedPayload
	TradeExecuted     *TradeExecutedPayload
	MarketDataUpdated *MarketDataUpdatedPayload
	OrderCancelled    *OrderCancelledPayload
}

// NewOrderPlaced builds an OrderPlaced event. The caller assigns
// SequenceNum when appending to a journal.
func NewOrderPlaced(ts time.Time, order domain.Order, rejectReason string) Event {
	return Event{
		Timestamp:   ts,
		Kind:        KindOrderPlaced,
		OrderPlaced: &OrderPlacedPayload{Order: order, RejectReason: rejectReason},
	}
}

// NewTradeExecuted builds a TradeExecuted event.
func NewTradeExecuted(ts time.Time, trade domain.Trade) Event {
	return Event{
		Timestamp:     ts,
		Kind:          KindTradeExecuted,
		TradeExecuted: &TradeExecutedPayload{Trade: trade},
	}
}

// NewMarketDataUpdated builds a MarketDataUpdated event.
func NewMarketDataUpdated(ts time.Time, payload MarketDataUpdatedPayload) Event {
	return Event{
		Timestamp:         ts,
		Kind:              KindMarketDataUpdated,
		MarketDataUpdated: &payload,
	}
}

// NewOrderCancelled builds an OrderCancelled event.
func NewOrderCancelled(ts time.Time, order domain.Order) Event {
	return Event{
		Timestamp:      ts,
		Kind:           KindOrderCancelled,
		OrderCancelled: &OrderCancelledPayload{Order: order},
	}
}
