package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/novaxchg/matching-engine/internal/domain"
)

func testMarket() domain.Market {
	return domain.Market{
		Symbol:       "AAPL",
		Status:       domain.MarketStatusOpen,
		TickSize:     decimal.NewFromFloat(0.01),
		MinOrderSize: 10,
		OpenTime:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CloseTime:    time.Date(2026, 1, 1, 23, 59, 59, 0, time.UTC),
	}
}

func testLimitOrder(price string, qty int64) domain.Order {
	p, _ := decimal.NewFromString(price)
	return domain.Order{Symbol: "AAPL", Type: domain.OrderTypeLimit, Price: p, Quantity: qty}
}

func TestChecker_PassesValidOrder(t *testing.T) {
	c := NewChecker()
	result := c.Check(testLimitOrder("150.00", 100), testMarket())
	assert.True(t, result.Passed, "expected pass, got reject: %s", result.Reason)
}

func TestChecker_RejectsBelowMinOrderSize(t *testing.T) {
	c := NewChecker()
	result := c.Check(testLimitOrder("150.00", 5), testMarket())
	assert.False(t, result.Passed, "expected reject for quantity below market minimum")
}

func TestChecker_RejectsNonTickMultiple(t *testing.T) {
	c := NewChecker()
	result := c.Check(testLimitOrder("150.003", 100), testMarket())
	assert.False(t, result.Passed, "expected reject for price not a tick-size multiple")
}

func TestChecker_RejectsNonPositivePrice(t *testing.T) {
	c := NewChecker()
	result := c.Check(testLimitOrder("0.00", 100), testMarket())
	assert.False(t, result.Passed, "expected reject for non-positive limit price")
}

func TestChecker_MarketOrdersSkipTickCheck(t *testing.T) {
	c := NewChecker()
	order := domain.Order{Symbol: "AAPL", Type: domain.OrderTypeMarket, Quantity: 100}
	result := c.Check(order, testMarket())
	assert.True(t, result.Passed, "expected market order to skip tick-size check, got reject: %s", result.Reason)
	assert.NotContains(t, result.ChecksRun, "tick_size", "tick_size check should not run for market orders")
}

func TestChecker_RejectsMarketOrderWithNonZeroPrice(t *testing.T) {
	c := NewChecker()
	order := domain.Order{
		Symbol: "AAPL", Type: domain.OrderTypeMarket, Quantity: 100,
		Price: decimal.NewFromFloat(150.00),
	}
	result := c.Check(order, testMarket())
	assert.False(t, result.Passed, "expected reject for market order carrying a non-zero price")
	assert.Contains(t, result.ChecksRun, "market_price_absent")
}
