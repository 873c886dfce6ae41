// Package marketdata handles real-time market data distribution. It is
// one of the four independent consumers fanned out from the output ring -
// it watches TradeExecuted and MarketDataUpdated events and republishes
// them as subscriber-facing trade reports and L1 quotes; it never reaches
// back into the order book itself. L2Depth is defined below, but Handle
// publishes no depth updates.
//
// Market Data Levels:
//
// L1 (Level 1) - Top of Book:
//   - Best bid price and size
//   - Best ask price and size
//   - Used by: retail traders, basic displays
//
// L2 (Level 2) - Depth:
//   - Multiple price levels (typically top 5-10)
//   - Total size at each level
//   - Used by: active traders, algorithms
package marketdata

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/novaxchg/matching-engine/internal/domain"
	"github.com/novaxchg/matching-engine/internal/events"
)

// L1Quote represents Level 1 (top of book) market data.
type L1Quote struct {
	Symbol    string
	BidPrice  decimal.Decimal
	BidSize   int64
	AskPrice  decimal.Decimal
	AskSize   int64
	Timestamp time.Time
}

// L2Depth represents Level 2 (depth) market data.
type L2Depth struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// PriceLevel represents a single price level in depth data.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity int64
	Count    int
}

// TradeReport represents a trade execution report.
type TradeReport struct {
	TradeID       uint64
	Symbol        string
	Price         decimal.Decimal
	Quantity      int64
	AggressorSide domain.Side
	Timestamp     time.Time
}

// Publisher distributes market data to subscribers.
type Publisher struct {
	mu           sync.RWMutex
	l1Subs       map[string][]chan L1Quote
	tradeSubs    map[string][]chan TradeReport
	allTradeSubs []chan TradeReport
	bufferSize   int
}

// NewPublisher creates a new market data publisher.
func NewPublisher(bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Publisher{
		l1Subs:     make(map[string][]chan L1Quote),
		tradeSubs:  make(map[string][]chan TradeReport),
		bufferSize: bufferSize,
	}
}

// SubscribeL1 subscribes to L1 quotes for a symbol.
func (p *Publisher) SubscribeL1(symbol string) <-chan L1Quote {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan L1Quote, p.bufferSize)
	p.l1Subs[symbol] = append(p.l1Subs[symbol], ch)
	return ch
}

// SubscribeTrades subscribes to trade reports for a symbol.
func (p *Publisher) SubscribeTrades(symbol string) <-chan TradeReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan TradeReport, p.bufferSize)
	p.tradeSubs[symbol] = append(p.tradeSubs[symbol], ch)
	return ch
}

// SubscribeAllTrades subscribes to trade reports for all symbols.
func (p *Publisher) SubscribeAllTrades() <-chan TradeReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan TradeReport, p.bufferSize)
	p.allTradeSubs = append(p.allTradeSubs, ch)
	return ch
}

// PublishL1 sends an L1 quote update to subscribers. Non-blocking: drops
// the update for any subscriber whose channel is full.
func (p *Publisher) PublishL1(quote L1Quote) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.l1Subs[quote.Symbol] {
		select {
		case ch <- quote:
		default:
		}
	}
}

// PublishTrade sends a trade report to subscribers.
func (p *Publisher) PublishTrade(trade TradeReport) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.tradeSubs[trade.Symbol] {
		select {
		case ch <- trade:
		default:
		}
	}
	for _, ch := range p.allTradeSubs {
		select {
		case ch <- trade:
		default:
		}
	}
}

// Close closes every subscription channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, subs := range p.l1Subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, subs := range p.tradeSubs {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range p.allTradeSubs {
		close(ch)
	}
}

// Handle is a ring.Handler[events.Event]: it republishes TradeExecuted and
// MarketDataUpdated journal events as market data. OrderPlaced events
// carry no information this consumer needs.
func (p *Publisher) Handle(seq int64, ev events.Event) {
	switch ev.Kind {
	case events.KindTradeExecuted:
		t := ev.TradeExecuted.Trade
		p.PublishTrade(TradeReport{
			TradeID:       t.TradeID,
			Symbol:        t.Symbol,
			Price:         t.Price,
			Quantity:      t.Quantity,
			AggressorSide: t.AggressorSide,
			Timestamp:     t.Timestamp,
		})
	case events.KindMarketDataUpdated:
		md := ev.MarketDataUpdated
		p.PublishL1(L1Quote{
			Symbol:    md.Symbol,
			BidPrice:  md.BestBid.Price,
			BidSize:   md.BestBidQty,
			AskPrice:  md.BestAsk.Price,
			AskSize:   md.BestAskQty,
			Timestamp: ev.Timestamp,
		})
	}
}
