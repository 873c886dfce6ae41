// Package validation performs the pre-trade checks the business-logic
// processor runs on every incoming order before it reaches the matching
// engine: quantity against the market's minimum order size, and price
// against its tick size. It is a narrowed adaptation of the teacher's
// risk.Checker - that package also enforced per-account position limits,
// daily volume caps, and price bands, none of which this exchange's
// markets track, so those checks are not carried over.
//
// Checks are pure functions of an order and a market: they hold no shared
// mutable state, so unlike risk.Checker they need no mutex.
package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/novaxchg/matching-engine/internal/domain"
)

// Result is the outcome of validating one order.
type Result struct {
	Passed    bool
	Reason    string
	ChecksRun []string
}

// Checker validates orders against their market's trading rules.
type Checker struct{}

// NewChecker creates a validation Checker. It carries no configuration of
// its own - every limit it enforces is read from the Market the order
// targets.
func NewChecker() *Checker {
	return &Checker{}
}

// Check runs every validation in order, returning on the first failure.
func (c *Checker) Check(order domain.Order, market domain.Market) Result {
	result := Result{Passed: true, ChecksRun: make([]string, 0, 2)}

	result.ChecksRun = append(result.ChecksRun, "min_order_size")
	if order.Quantity < market.MinOrderSize {
		return Result{
			Passed:    false,
			Reason:    fmt.Sprintf("quantity %d is below market minimum %d", order.Quantity, market.MinOrderSize),
			ChecksRun: result.ChecksRun,
		}
	}

	if order.Type == domain.OrderTypeLimit {
		result.ChecksRun = append(result.ChecksRun, "tick_size")
		if !isTickMultiple(order.Price, market.TickSize) {
			return Result{
				Passed:    false,
				Reason:    fmt.Sprintf("price %s is not a multiple of tick size %s", order.Price, market.TickSize),
				ChecksRun: result.ChecksRun,
			}
		}
		if order.Price.Sign() <= 0 {
			return Result{
				Passed:    false,
				Reason:    "limit order price must be positive",
				ChecksRun: result.ChecksRun,
			}
		}
	} else {
		result.ChecksRun = append(result.ChecksRun, "market_price_absent")
		if order.Price.Sign() != 0 {
			return Result{
				Passed:    false,
				Reason:    fmt.Sprintf("market order price must be absent/zero, got %s", order.Price),
				ChecksRun: result.ChecksRun,
			}
		}
	}

	return result
}

// isTickMultiple reports whether price is an exact integer multiple of
// tick. tick must be positive.
func isTickMultiple(price, tick decimal.Decimal) bool {
	if tick.Sign() <= 0 {
		return false
	}
	quotient := price.Div(tick)
	return quotient.Equal(quotient.Truncate(0))
}
