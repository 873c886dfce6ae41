package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrder_WithFill_PartialLeavesRemaining(t *testing.T) {
	o := Order{OrderID: 1, Quantity: 100, RemainingQuantity: 100, Status: OrderStatusPending}
	filled := o.WithFill(40)

	if filled.RemainingQuantity != 60 {
		t.Errorf("expected 60 remaining, got %d", filled.RemainingQuantity)
	}
	if filled.Status != OrderStatusPartiallyFilled {
		t.Errorf("expected partially filled status, got %s", filled.Status)
	}
	if o.RemainingQuantity != 100 {
		t.Error("WithFill must not mutate the receiver")
	}
}

func TestOrder_WithFill_FullyConsumedIsFilled(t *testing.T) {
	o := Order{OrderID: 1, Quantity: 100, RemainingQuantity: 100}
	filled := o.WithFill(100)

	if filled.RemainingQuantity != 0 {
		t.Errorf("expected 0 remaining, got %d", filled.RemainingQuantity)
	}
	if filled.Status != OrderStatusFilled {
		t.Errorf("expected filled status, got %s", filled.Status)
	}
}

func TestOrder_FilledQuantity(t *testing.T) {
	o := Order{Quantity: 100, RemainingQuantity: 35}
	if o.FilledQuantity() != 65 {
		t.Errorf("expected 65 filled, got %d", o.FilledQuantity())
	}
}

func TestOrder_IsActive(t *testing.T) {
	cases := []struct {
		status OrderStatus
		active bool
	}{
		{OrderStatusPending, true},
		{OrderStatusPartiallyFilled, true},
		{OrderStatusFilled, false},
		{OrderStatusCancelled, false},
		{OrderStatusRejected, false},
	}
	for _, tc := range cases {
		o := Order{Status: tc.status}
		if o.IsActive() != tc.active {
			t.Errorf("status %s: expected active=%v, got %v", tc.status, tc.active, o.IsActive())
		}
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("expected SideBuy.Opposite() == SideSell")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("expected SideSell.Opposite() == SideBuy")
	}
}

func TestMarket_IsTradingAt(t *testing.T) {
	open := mustParseTime("2026-01-01T09:30:00Z")
	close := mustParseTime("2026-01-01T16:00:00Z")
	market := Market{Status: MarketStatusOpen, OpenTime: open, CloseTime: close}

	inHours := mustParseTime("2026-01-01T12:00:00Z")
	if !market.IsTradingAt(inHours) {
		t.Error("expected market open during trading hours")
	}

	beforeOpen := mustParseTime("2026-01-01T08:00:00Z")
	if market.IsTradingAt(beforeOpen) {
		t.Error("expected market closed before open time")
	}

	afterClose := mustParseTime("2026-01-01T17:00:00Z")
	if market.IsTradingAt(afterClose) {
		t.Error("expected market closed after close time")
	}

	market.Status = MarketStatusSuspended
	if market.IsTradingAt(inHours) {
		t.Error("expected suspended market to reject trading regardless of time of day")
	}
}

func TestMarketStatus_ClosedIsDistinctFromPreOpen(t *testing.T) {
	assert.Equal(t, "CLOSED", MarketStatusClosed.String())
	assert.NotEqual(t, MarketStatusClosed, MarketStatusPreOpen)

	market := Market{Status: MarketStatusClosed, OpenTime: mustParseTime("2026-01-01T09:30:00Z"), CloseTime: mustParseTime("2026-01-01T16:00:00Z")}
	assert.False(t, market.IsTradingAt(mustParseTime("2026-01-01T12:00:00Z")), "a CLOSED market must never accept trading regardless of time of day")
}

func mustParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDecimalTickSize(t *testing.T) {
	tick := decimal.NewFromFloat(0.01)
	price := decimal.NewFromFloat(150.07)
	quotient := price.Div(tick)
	if !quotient.Equal(quotient.Truncate(0)) {
		t.Errorf("expected 150.07 to be a tick multiple of 0.01")
	}
}
