package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus is the authoritative trading status of a market. Wall-clock
// time only ever gates trading while status is MarketStatusOpen; every
// other status is closed regardless of the time of day.
type MarketStatus int

const (
	MarketStatusClosed MarketStatus = iota
	MarketStatusPreOpen
	MarketStatusOpen
	MarketStatusSuspended
	MarketStatusPostClose
)

func (s MarketStatus) String() string {
	switch s {
	case MarketStatusClosed:
		return "CLOSED"
	case MarketStatusPreOpen:
		return "PRE_OPEN"
	case MarketStatusOpen:
		return "OPEN"
	case MarketStatusSuspended:
		return "SUSPENDED"
	case MarketStatusPostClose:
		return "POST_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Market describes one tradable symbol's trading rules, session window, and
// the running top-of-book/daily-statistics snapshot maintained by the
// processor after every executed trade.
type Market struct {
	Symbol       string
	Name         string
	Status       MarketStatus
	TickSize     decimal.Decimal // minimum price increment; price must be an integer multiple
	MinOrderSize int64
	OpenTime     time.Time // wall-clock time of day the session opens (date component ignored)
	CloseTime    time.Time // wall-clock time of day the session closes, exclusive

	// Running snapshot, updated by the processor whenever a trade executes
	// on this symbol. Zero values until the first trade of the day.
	LastPrice      decimal.Decimal
	BestBid        decimal.Decimal
	BestAsk        decimal.Decimal
	BidQty         int64
	AskQty         int64
	DailyHigh      decimal.Decimal
	DailyLow       decimal.Decimal
	DailyVolume    int64
	DailyTurnover  decimal.Decimal
	LastUpdateTime time.Time
}

// WithTrade returns a copy of the market with its running snapshot updated
// to reflect one executed trade at tradePrice/tradeQty, plus the resulting
// best bid/ask and quantities read off the book immediately after the
// match. DailyHigh/DailyLow widen monotonically; DailyVolume/DailyTurnover
// accumulate; LastUpdateTime always advances.
func (m Market) WithTrade(tradePrice decimal.Decimal, tradeQty int64, bestBid, bestAsk decimal.Decimal, bidQty, askQty int64, at time.Time) Market {
	next := m
	next.LastPrice = tradePrice
	next.BestBid = bestBid
	next.BestAsk = bestAsk
	next.BidQty = bidQty
	next.AskQty = askQty

	if next.DailyVolume == 0 || tradePrice.GreaterThan(next.DailyHigh) {
		next.DailyHigh = tradePrice
	}
	if next.DailyVolume == 0 || tradePrice.LessThan(next.DailyLow) {
		next.DailyLow = tradePrice
	}
	next.DailyVolume += tradeQty
	next.DailyTurnover = next.DailyTurnover.Add(tradePrice.Mul(decimal.NewFromInt(tradeQty)))
	next.LastUpdateTime = at
	return next
}

// IsTradingAt reports whether the market accepts new orders at instant now.
// Status is authoritative: only MarketStatusOpen ever permits trading, and
// even then only within [OpenTime, CloseTime) of the wall clock. CloseTime
// is exclusive, so an order arriving exactly at CloseTime is rejected.
func (m Market) IsTradingAt(now time.Time) bool {
	if m.Status != MarketStatusOpen {
		return false
	}
	tod := timeOfDay(now)
	open := timeOfDay(m.OpenTime)
	close := timeOfDay(m.CloseTime)
	return tod >= open && tod < close
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
