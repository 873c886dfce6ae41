// Package engine is the single-threaded business-logic processor sitting
// behind the input ring. It is the only goroutine that ever touches the
// matching engine's order books, the market registry, or the in-memory
// event journal - by construction, not by locking: every read and write of
// that state arrives as a Request over the ring and is handled here, in
// ring-sequence order, one at a time.
//
// This generalizes the teacher's disruptor.EventProcessor.processRequest:
// the same six-step order transaction (validate, assign IDs, match, update
// status, journal, respond) the original Java BusinessLogicProcessor runs,
// reimplemented with decimal prices, a real fill-or-kill path, and market
// status/session gating the teacher's reference never had.
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/novaxchg/matching-engine/internal/domain"
	"github.com/novaxchg/matching-engine/internal/events"
	"github.com/novaxchg/matching-engine/internal/matching"
	"github.com/novaxchg/matching-engine/internal/orderbook"
	"github.com/novaxchg/matching-engine/internal/ring"
	"github.com/novaxchg/matching-engine/internal/validation"
)

// Processor owns all mutable exchange state and the authoritative,
// in-memory event journal. It must only be driven by a single
// ring.EventProcessor[Request] goroutine.
type Processor struct {
	matching   *matching.Engine
	validator  *validation.Checker
	markets    map[string]domain.Market
	journal    []events.Event
	trades     []domain.Trade
	diagLog    *events.DiagnosticLog // optional; nil disables the diagnostic disk mirror
	sequenceID uint64

	outRing *ring.RingBuffer[events.Event]
	outSeq  *ring.Sequencer

	logger *zap.Logger
}

// Config configures a new Processor.
type Config struct {
	Markets    []domain.Market
	DiagLog    *events.DiagnosticLog
	OutputRing *ring.RingBuffer[events.Event]
	OutputSeq  *ring.Sequencer
	Logger     *zap.Logger
}

// NewProcessor builds a Processor with one order book per configured
// market.
func NewProcessor(cfg Config) *Processor {
	eng := matching.NewEngine()
	markets := make(map[string]domain.Market, len(cfg.Markets))
	for _, m := range cfg.Markets {
		eng.AddSymbol(m.Symbol)
		markets[m.Symbol] = m
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Processor{
		matching:  eng,
		validator: validation.NewChecker(),
		markets:   markets,
		diagLog:   cfg.DiagLog,
		outRing:   cfg.OutputRing,
		outSeq:    cfg.OutputSeq,
		logger:    logger,
	}
}

// Handle processes one Request. It is meant to be passed directly as a
// ring.Handler[Request] to the input ring's EventProcessor; a panic here
// is deliberately not recovered by that processor (see ring.EventProcessor
// documentation) because it signals a violated invariant in matching or
// journal state, not a transient failure.
func (p *Processor) Handle(seq int64, req Request) {
	var resp Response

	switch req.Kind {
	case RequestSubmitOrder:
		resp = p.submitOrder(req.Order)
	case RequestCancelOrder:
		resp = p.cancelOrder(req.Symbol, req.OrderID)
	case RequestQueryBook:
		resp = p.queryBook(req.Symbol, req.DepthLevels)
	case RequestQueryOrder:
		resp = p.queryOrder(req.Symbol, req.OrderID)
	default:
		resp = Response{Success: false, Err: fmt.Errorf("unknown request kind: %d", req.Kind)}
	}

	if req.ResponseCh != nil {
		select {
		case req.ResponseCh <- resp:
		default:
			p.logger.Warn("dropped response, caller not listening", zap.Int64("sequence", seq))
		}
	}
}

// submitOrder runs the six-step order transaction: market lookup,
// validation, assign IDs, match, state update, journal, respond.
// Validation and market-state errors (step 1-2) are returned as
// Rejected{reason} without ever reaching the journal - they consume no
// sequence number and produce no OrderPlacedEvent.
func (p *Processor) submitOrder(order domain.Order) Response {
	now := time.Now()

	market, known := p.markets[order.Symbol]
	if !known {
		return reject(order, fmt.Sprintf("unknown symbol: %s", order.Symbol))
	}
	if !market.IsTradingAt(now) {
		return reject(order, fmt.Sprintf("market %s is not open for trading", order.Symbol))
	}
	if result := p.validator.Check(order, market); !result.Passed {
		return reject(order, result.Reason)
	}

	if order.OrderID == 0 {
		order.OrderID = p.matching.NextOrderID()
	}
	if order.Timestamp.IsZero() {
		order.Timestamp = now
	}
	order.Status = domain.OrderStatusPending
	order.RemainingQuantity = order.Quantity

	result := p.matching.ProcessOrder(order)

	p.journalOrderPlaced(result.Order, result.RejectReason)
	for _, trade := range result.Trades {
		p.trades = append(p.trades, trade)
		p.journalTradeExecuted(trade)
	}
	if len(result.Trades) > 0 {
		for _, trade := range result.Trades {
			p.updateMarketOnTrade(order.Symbol, trade)
		}
		p.journalMarketDataUpdated(order.Symbol)
	}

	return Response{
		Success:      result.Accepted,
		Order:        result.Order,
		Trades:       result.Trades,
		RejectReason: result.RejectReason,
	}
}

// reject builds a synchronous Rejected response for a validation or
// market-state error. Per SPEC_FULL.md §7 these never touch the journal:
// no OrderPlacedEvent, no sequence number consumed.
func reject(order domain.Order, reason string) Response {
	rejected := order.WithStatus(domain.OrderStatusRejected)
	return Response{Success: false, Order: rejected, RejectReason: reason}
}

// updateMarketOnTrade folds step 5 of the order transaction ("update the
// market") into the market registry for one trade: last_price, best_bid/ask
// and their quantities, and the running daily_high/low/volume/turnover.
// submitOrder calls it once per trade of a match, in match order, so the
// last call leaves last_price at the final trade's price; best bid/ask are
// read off the book's state immediately after the match.
func (p *Processor) updateMarketOnTrade(symbol string, last domain.Trade) {
	market := p.markets[symbol]
	book := p.matching.GetOrderBook(symbol)

	var bestBid, bestAsk decimal.Decimal
	var bidQty, askQty int64
	if bid := book.GetBestBid(); bid != nil {
		bestBid = bid.Price
		bidQty = bid.TotalQty
	}
	if ask := book.GetBestAsk(); ask != nil {
		bestAsk = ask.Price
		askQty = ask.TotalQty
	}

	p.markets[symbol] = market.WithTrade(last.Price, last.Quantity, bestBid, bestAsk, bidQty, askQty, last.Timestamp)
}

func (p *Processor) cancelOrder(symbol string, orderID uint64) Response {
	order, err := p.matching.CancelOrder(symbol, orderID)
	if err != nil {
		return Response{Success: false, Err: err}
	}
	p.journalOrderCancelled(order)
	return Response{Success: true, Order: order}
}

func (p *Processor) queryBook(symbol string, levels int) Response {
	book := p.matching.GetOrderBook(symbol)
	if book == nil {
		return Response{Success: false, Err: fmt.Errorf("unknown symbol: %s", symbol)}
	}

	snapshot := &BookSnapshot{Symbol: symbol}
	for _, level := range book.GetBidDepth(levels) {
		snapshot.Bids = append(snapshot.Bids, DepthLevel{
			Price: level.Price.String(), Quantity: level.TotalQty, OrderCount: level.Count(),
		})
	}
	for _, level := range book.GetAskDepth(levels) {
		snapshot.Asks = append(snapshot.Asks, DepthLevel{
			Price: level.Price.String(), Quantity: level.TotalQty, OrderCount: level.Count(),
		})
	}

	return Response{Success: true, Book: snapshot}
}

func (p *Processor) queryOrder(symbol string, orderID uint64) Response {
	order, found := p.matching.GetOrder(symbol, orderID)
	if !found {
		return Response{Success: false, Err: fmt.Errorf("order %d not found", orderID)}
	}
	return Response{Success: true, Order: order}
}

// nextSequence assigns the next gap-free journal sequence number.
func (p *Processor) nextSequence() uint64 {
	p.sequenceID++
	return p.sequenceID
}

func (p *Processor) journalOrderPlaced(order domain.Order, rejectReason string) {
	ev := events.NewOrderPlaced(order.Timestamp, order, rejectReason)
	p.appendEvent(ev)
}

func (p *Processor) journalTradeExecuted(trade domain.Trade) {
	ev := events.NewTradeExecuted(trade.Timestamp, trade)
	p.appendEvent(ev)
}

func (p *Processor) journalOrderCancelled(order domain.Order) {
	ev := events.NewOrderCancelled(time.Now(), order)
	p.appendEvent(ev)
}

func (p *Processor) journalMarketDataUpdated(symbol string) {
	book := p.matching.GetOrderBook(symbol)
	payload := events.MarketDataUpdatedPayload{Symbol: symbol}

	if bid := book.GetBestBid(); bid != nil {
		payload.BestBidQty = bid.TotalQty
		if head := bid.Head(); head != nil {
			payload.BestBid = head.Order
		}
	}
	if ask := book.GetBestAsk(); ask != nil {
		payload.BestAskQty = ask.TotalQty
		if head := ask.Head(); head != nil {
			payload.BestAsk = head.Order
		}
	}

	ev := events.NewMarketDataUpdated(time.Now(), payload)
	p.appendEvent(ev)
}

// appendEvent assigns the next sequence number, appends to the in-memory
// journal, optionally mirrors to the diagnostic log, and publishes the
// event onto the output ring for the fan-out of downstream consumers.
func (p *Processor) appendEvent(ev events.Event) {
	ev.SequenceNum = p.nextSequence()
	p.journal = append(p.journal, ev)

	if p.diagLog != nil {
		if _, err := p.diagLog.Append(ev); err != nil {
			p.logger.Error("diagnostic log append failed", zap.Error(err), zap.Uint64("sequence", ev.SequenceNum))
		}
	}

	if p.outRing != nil && p.outSeq != nil {
		seq := p.outSeq.Next()
		*p.outRing.Get(seq) = ev
		p.outSeq.Publish(seq)
	}
}

// JournalLen reports how many events have been journaled so far. Exposed
// for tests and diagnostics only.
func (p *Processor) JournalLen() int {
	return len(p.journal)
}

// Market returns a snapshot of one symbol's market record, and whether the
// symbol is known. Legacy in-process accessor kept for unit-test
// convenience per SPEC_FULL.md §4.4's accessor contract. No input-ring
// request returns the Market record: RequestQueryBook returns book depth
// only. Only the processor's own goroutine may touch this map directly.
func (p *Processor) Market(symbol string) (domain.Market, bool) {
	market, known := p.markets[symbol]
	return market, known
}

// OrderBook returns the live order book for symbol, or nil if unregistered.
// Legacy in-process accessor; like Market, only safe to call from the
// processor's own goroutine or from a test that owns the Processor
// directly and never drives it through the ring concurrently.
func (p *Processor) OrderBook(symbol string) *orderbook.OrderBook {
	return p.matching.GetOrderBook(symbol)
}

// ActiveOrders returns every order still resting in any symbol's book, in
// no particular order. Legacy in-process accessor; see Market.
func (p *Processor) ActiveOrders() []domain.Order {
	var result []domain.Order
	for _, symbol := range p.matching.Symbols() {
		result = append(result, p.matching.GetOrderBook(symbol).ActiveOrders()...)
	}
	return result
}

// Trades returns every trade executed so far, oldest first. The slice is a
// defensive copy; mutating it has no effect on processor state.
func (p *Processor) Trades() []domain.Trade {
	out := make([]domain.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// EventJournal returns the full event journal, oldest first. The slice is
// a defensive copy; mutating it has no effect on processor state.
func (p *Processor) EventJournal() []events.Event {
	out := make([]events.Event, len(p.journal))
	copy(out, p.journal)
	return out
}
