// Package tests provides end-to-end integration tests that demonstrate the
// exchange's core system design concepts end to end, without any of the
// external services (Postgres, Kafka) the ambient consumers depend on.
//
// Run with: go test -v ./tests/...
package tests

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/novaxchg/matching-engine/internal/domain"
	"github.com/novaxchg/matching-engine/internal/engine"
	"github.com/novaxchg/matching-engine/internal/events"
	"github.com/novaxchg/matching-engine/internal/marketdata"
	"github.com/novaxchg/matching-engine/internal/matching"
	"github.com/novaxchg/matching-engine/internal/validation"
)

func repeat(s string, n int) string {
	result := ""
	for i := 0; i < n; i++ {
		result += s
	}
	return result
}

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func limitOrder(symbol string, side domain.Side, p string, qty int64, user string) domain.Order {
	return domain.Order{
		Symbol:            symbol,
		Side:              side,
		Type:              domain.OrderTypeLimit,
		TimeInForce:       domain.TimeInForceGTC,
		Price:             price(p),
		Quantity:          qty,
		RemainingQuantity: qty,
		UserID:            user,
		Timestamp:         time.Now(),
	}
}

// ============================================================================
// TEST 1: SINGLE-THREADED CORE (LMAX Pattern)
// ============================================================================

func TestSingleThreadedCore_Determinism(t *testing.T) {
	fmt.Println()
	fmt.Println(repeat("=", 70))
	fmt.Println("TEST: Single-Threaded Core (LMAX Pattern)")
	fmt.Println(repeat("=", 70))

	orderSequence := []struct {
		side  domain.Side
		price string
		qty   int64
	}{
		{domain.SideSell, "151.00", 100},
		{domain.SideSell, "150.50", 50},
		{domain.SideBuy, "150.00", 200},
		{domain.SideBuy, "150.50", 75},
	}

	runSequence := func() []string {
		eng := matching.NewEngine()
		eng.AddSymbol("AAPL")

		var results []string
		for i, o := range orderSequence {
			order := limitOrder("AAPL", o.side, o.price, o.qty, fmt.Sprintf("TRADER%d", i))
			order.OrderID = eng.NextOrderID()
			result := eng.ProcessOrder(order)
			results = append(results, fmt.Sprintf("order %d: %s %d@%s -> trades:%d resting:%d",
				i+1, o.side, o.qty, o.price, len(result.Trades), result.RestingQty))
		}
		return results
	}

	run1 := runSequence()
	run2 := runSequence()

	for i := range run1 {
		if run1[i] != run2[i] {
			t.Errorf("mismatch at order %d: %q vs %q", i+1, run1[i], run2[i])
		}
	}
}

// ============================================================================
// TEST 2: PRICE-TIME PRIORITY (FIFO)
// ============================================================================

func TestPriceTimePriority(t *testing.T) {
	eng := matching.NewEngine()
	eng.AddSymbol("AAPL")

	sellers := []struct {
		id    string
		price string
		qty   int64
	}{
		{"S1", "150.00", 100},
		{"S2", "150.00", 100},
		{"S3", "150.00", 100},
		{"S4", "150.50", 100},
	}

	var orderIDs []uint64
	for _, s := range sellers {
		order := limitOrder("AAPL", domain.SideSell, s.price, s.qty, s.id)
		order.OrderID = eng.NextOrderID()
		eng.ProcessOrder(order)
		orderIDs = append(orderIDs, order.OrderID)
	}

	buyOrder := domain.Order{
		Symbol: "AAPL", Side: domain.SideBuy, Type: domain.OrderTypeMarket,
		TimeInForce: domain.TimeInForceIOC, Quantity: 250, RemainingQuantity: 250,
		UserID: "BUYER", Timestamp: time.Now(), OrderID: eng.NextOrderID(),
	}
	result := eng.ProcessOrder(buyOrder)

	if len(result.Trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(result.Trades))
	}
	expectedMakers := []uint64{orderIDs[0], orderIDs[1], orderIDs[2]}
	for i, trade := range result.Trades {
		if trade.SellOrderID != expectedMakers[i] {
			t.Errorf("trade %d: expected maker %d, got %d", i, expectedMakers[i], trade.SellOrderID)
		}
	}
	if !result.Trades[0].Price.Equal(price("150.00")) {
		t.Errorf("expected fills at 150.00, got %s", result.Trades[0].Price)
	}
}

// ============================================================================
// TEST 3: DECIMAL ARITHMETIC (NO FLOAT ERRORS)
// ============================================================================

func TestDecimalArithmetic_NoFloatDrift(t *testing.T) {
	// Variables, not constants: Go folds untyped constant expressions
	// exactly, so only runtime float64 addition shows the drift.
	a, b := 0.1, 0.2
	floatResult := a + b
	if floatResult == 0.3 {
		t.Fatal("expected IEEE 754 drift in this comparison; got exact equality, test assumption broken")
	}

	decResult := price("0.1").Add(price("0.2"))
	if !decResult.Equal(price("0.3")) {
		t.Errorf("decimal arithmetic drifted: 0.1 + 0.2 = %s", decResult)
	}

	eng := matching.NewEngine()
	eng.AddSymbol("AAPL")

	sell := limitOrder("AAPL", domain.SideSell, "150.25", 100, "SELLER")
	sell.OrderID = eng.NextOrderID()
	eng.ProcessOrder(sell)

	buy := limitOrder("AAPL", domain.SideBuy, "150.25", 100, "BUYER")
	buy.OrderID = eng.NextOrderID()
	result := eng.ProcessOrder(buy)

	if len(result.Trades) != 1 || !result.Trades[0].Price.Equal(price("150.25")) {
		t.Fatalf("expected one trade at exactly 150.25, got %+v", result.Trades)
	}
}

// ============================================================================
// TEST 4: VALIDATION
// ============================================================================

func TestValidation_TickSizeAndMinOrderSize(t *testing.T) {
	market := domain.Market{
		Symbol: "AAPL", Status: domain.MarketStatusOpen,
		TickSize: price("0.01"), MinOrderSize: 10,
		OpenTime:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CloseTime: time.Date(2026, 1, 1, 23, 59, 59, 0, time.UTC),
	}
	checker := validation.NewChecker()

	cases := []struct {
		name     string
		order    domain.Order
		expected bool
	}{
		{"normal order", limitOrder("AAPL", domain.SideBuy, "150.00", 100, "T1"), true},
		{"below min order size", limitOrder("AAPL", domain.SideBuy, "150.00", 5, "T1"), false},
		{"not a tick multiple", limitOrder("AAPL", domain.SideBuy, "150.003", 100, "T1"), false},
	}

	for _, tc := range cases {
		result := checker.Check(tc.order, market)
		if result.Passed != tc.expected {
			t.Errorf("%s: expected passed=%v, got passed=%v (%s)", tc.name, tc.expected, result.Passed, result.Reason)
		}
	}
}

// ============================================================================
// TEST 5: MARKET DATA PUBLISHING
// ============================================================================

func TestMarketDataPublishing(t *testing.T) {
	publisher := marketdata.NewPublisher(100)
	defer publisher.Close()

	var receivedL1, receivedTrades int32
	var wg sync.WaitGroup

	l1Ch := publisher.SubscribeL1("AAPL")
	tradeCh := publisher.SubscribeTrades("AAPL")
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-l1Ch:
				atomic.AddInt32(&receivedL1, 1)
			case <-tradeCh:
				atomic.AddInt32(&receivedTrades, 1)
			case <-done:
				return
			}
		}
	}()

	publisher.PublishL1(marketdata.L1Quote{Symbol: "AAPL", AskPrice: price("150.25"), AskSize: 100, Timestamp: time.Now()})
	publisher.PublishTrade(marketdata.TradeReport{
		TradeID: 1, Symbol: "AAPL", Price: price("150.25"), Quantity: 50,
		AggressorSide: domain.SideBuy, Timestamp: time.Now(),
	})
	publisher.PublishL1(marketdata.L1Quote{Symbol: "AAPL", AskPrice: price("150.25"), AskSize: 50, Timestamp: time.Now()})

	time.Sleep(50 * time.Millisecond)
	close(done)
	wg.Wait()

	if atomic.LoadInt32(&receivedL1) < 2 || atomic.LoadInt32(&receivedTrades) < 1 {
		t.Errorf("expected 2+ L1 updates and 1+ trade, got %d L1, %d trades", receivedL1, receivedTrades)
	}
}

// ============================================================================
// TEST 6: CONSERVATION OF SHARES / FIFO CORRECTNESS
// ============================================================================

func TestCorrectness_ConservationOfShares(t *testing.T) {
	eng := matching.NewEngine()
	eng.AddSymbol("AAPL")

	sellOrders := []struct {
		price string
		qty   int64
	}{
		{"150.00", 100},
		{"150.00", 50},
		{"150.00", 75},
		{"150.50", 200},
	}

	var orderIDs []uint64
	var totalSellQty int64
	for _, so := range sellOrders {
		order := limitOrder("AAPL", domain.SideSell, so.price, so.qty, "SELLER")
		order.OrderID = eng.NextOrderID()
		eng.ProcessOrder(order)
		orderIDs = append(orderIDs, order.OrderID)
		totalSellQty += so.qty
	}

	book := eng.GetOrderBook("AAPL")
	askDepth := book.GetAskDepth(5)
	if len(askDepth) == 0 || askDepth[0].TotalQty != 225 {
		t.Fatalf("expected 225 shares resting at 150.00, got %+v", askDepth)
	}

	buy := limitOrder("AAPL", domain.SideBuy, "150.00", 225, "BUYER")
	buy.OrderID = eng.NextOrderID()
	result := eng.ProcessOrder(buy)

	var filledQty int64
	for _, trade := range result.Trades {
		filledQty += trade.Quantity
	}
	if filledQty != 225 {
		t.Fatalf("expected 225 filled, got %d", filledQty)
	}

	expectedOrder := []uint64{orderIDs[0], orderIDs[1], orderIDs[2]}
	for i, trade := range result.Trades {
		if trade.SellOrderID != expectedOrder[i] {
			t.Errorf("trade %d: expected maker order %d, got %d", i, expectedOrder[i], trade.SellOrderID)
		}
	}

	askDepth = book.GetAskDepth(5)
	if len(askDepth) == 0 || !askDepth[0].Price.Equal(price("150.50")) {
		t.Fatalf("expected 150.00 level to be fully consumed, best ask should now be 150.50: %+v", askDepth)
	}
}

// ============================================================================
// TEST 7: CANCELLATION
// ============================================================================

func TestCancellation_RemovesRestingOrder(t *testing.T) {
	eng := matching.NewEngine()
	eng.AddSymbol("AAPL")

	order := limitOrder("AAPL", domain.SideBuy, "149.00", 100, "T1")
	order.OrderID = eng.NextOrderID()
	eng.ProcessOrder(order)

	book := eng.GetOrderBook("AAPL")
	if len(book.ActiveOrders()) != 1 {
		t.Fatalf("expected 1 active order before cancel, got %d", len(book.ActiveOrders()))
	}

	cancelled, err := eng.CancelOrder("AAPL", order.OrderID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled order status, got %s", cancelled.Status)
	}
	if len(book.ActiveOrders()) != 0 {
		t.Errorf("expected 0 active orders after cancel, got %d", len(book.ActiveOrders()))
	}
}

// ============================================================================
// TEST 8: FILL-OR-KILL
// ============================================================================

func TestFillOrKill_InsufficientThenSufficientDepth(t *testing.T) {
	eng := matching.NewEngine()
	eng.AddSymbol("AAPL")

	resting := limitOrder("AAPL", domain.SideSell, "150.00", 50, "SELLER")
	resting.OrderID = eng.NextOrderID()
	eng.ProcessOrder(resting)

	fok := domain.Order{
		Symbol: "AAPL", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		TimeInForce: domain.TimeInForceFOK, Price: price("150.00"),
		Quantity: 100, RemainingQuantity: 100, UserID: "BUYER",
		Timestamp: time.Now(), OrderID: eng.NextOrderID(),
	}
	result := eng.ProcessOrder(fok)
	if len(result.Trades) != 0 {
		t.Fatalf("expected zero trades for unfillable FOK, got %d", len(result.Trades))
	}
	if result.Order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected FOK to be cancelled, got %s", result.Order.Status)
	}

	topUp := limitOrder("AAPL", domain.SideSell, "150.00", 100, "SELLER2")
	topUp.OrderID = eng.NextOrderID()
	eng.ProcessOrder(topUp)

	fok2 := domain.Order{
		Symbol: "AAPL", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		TimeInForce: domain.TimeInForceFOK, Price: price("150.00"),
		Quantity: 100, RemainingQuantity: 100, UserID: "BUYER",
		Timestamp: time.Now(), OrderID: eng.NextOrderID(),
	}
	result2 := eng.ProcessOrder(fok2)

	var filled int64
	for _, trade := range result2.Trades {
		filled += trade.Quantity
	}
	if filled != 100 {
		t.Fatalf("expected FOK to fill entirely once depth sufficient, filled %d", filled)
	}
	if result2.Order.Status != domain.OrderStatusFilled {
		t.Errorf("expected FOK order filled, got %s", result2.Order.Status)
	}
}

// ============================================================================
// TEST 9: BUSINESS-LOGIC PROCESSOR (end-to-end submit/journal)
// ============================================================================

func TestProcessor_SubmitJournalsOrderAndTrades(t *testing.T) {
	market := domain.Market{
		Symbol: "AAPL", Status: domain.MarketStatusOpen,
		TickSize: price("0.01"), MinOrderSize: 1,
		OpenTime:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CloseTime: time.Date(2026, 1, 1, 23, 59, 59, 0, time.UTC),
	}
	proc := engine.NewProcessor(engine.Config{Markets: []domain.Market{market}})

	seller := limitOrder("AAPL", domain.SideSell, "150.00", 100, "SELLER")
	req1 := engine.Request{Kind: engine.RequestSubmitOrder, Order: seller, ResponseCh: make(chan engine.Response, 1)}
	proc.Handle(1, req1)
	resp1 := <-req1.ResponseCh
	if !resp1.Success {
		t.Fatalf("expected seller order accepted, got reject: %s", resp1.RejectReason)
	}

	buyer := limitOrder("AAPL", domain.SideBuy, "150.00", 100, "BUYER")
	req2 := engine.Request{Kind: engine.RequestSubmitOrder, Order: buyer, ResponseCh: make(chan engine.Response, 1)}
	proc.Handle(2, req2)
	resp2 := <-req2.ResponseCh
	if !resp2.Success || len(resp2.Trades) != 1 {
		t.Fatalf("expected buyer order to fill against resting seller, got %+v", resp2)
	}

	if proc.JournalLen() != 4 {
		t.Errorf("expected 4 journal entries (2 order-placed + 1 trade + 1 market-data-updated), got %d", proc.JournalLen())
	}

	market, known := proc.Market("AAPL")
	if !known {
		t.Fatalf("expected AAPL to remain a known market after trading")
	}
	if !market.LastPrice.Equal(price("150.00")) {
		t.Errorf("expected last_price 150.00 after the trade, got %s", market.LastPrice)
	}
	if market.DailyVolume != 100 {
		t.Errorf("expected daily_volume 100 after the trade, got %d", market.DailyVolume)
	}
}

// ============================================================================
// TEST 9b: CANCELLATION JOURNALING (S7, processor-level)
// ============================================================================

func TestProcessor_CancelJournalsOrderCancelled(t *testing.T) {
	market := domain.Market{
		Symbol: "AAPL", Status: domain.MarketStatusOpen,
		TickSize: price("0.01"), MinOrderSize: 1,
		OpenTime:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CloseTime: time.Date(2026, 1, 1, 23, 59, 59, 0, time.UTC),
	}
	proc := engine.NewProcessor(engine.Config{Markets: []domain.Market{market}})

	resting := limitOrder("AAPL", domain.SideBuy, "149.00", 100, "T1")
	submit := engine.Request{Kind: engine.RequestSubmitOrder, Order: resting, ResponseCh: make(chan engine.Response, 1)}
	proc.Handle(1, submit)
	submitResp := <-submit.ResponseCh
	if !submitResp.Success {
		t.Fatalf("expected resting order accepted, got reject: %s", submitResp.RejectReason)
	}

	if len(proc.ActiveOrders()) != 1 {
		t.Fatalf("expected 1 active order before cancel, got %d", len(proc.ActiveOrders()))
	}

	cancel := engine.Request{
		Kind: engine.RequestCancelOrder, Symbol: "AAPL", OrderID: submitResp.Order.OrderID,
		ResponseCh: make(chan engine.Response, 1),
	}
	proc.Handle(2, cancel)
	cancelResp := <-cancel.ResponseCh
	if !cancelResp.Success {
		t.Fatalf("expected cancel accepted, got err: %v", cancelResp.Err)
	}
	if cancelResp.Order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled order status, got %s", cancelResp.Order.Status)
	}
	if len(proc.ActiveOrders()) != 0 {
		t.Errorf("expected 0 active orders after cancel, got %d", len(proc.ActiveOrders()))
	}

	journal := proc.EventJournal()
	if len(journal) != 2 {
		t.Fatalf("expected 2 journal entries (1 order-placed + 1 order-cancelled), got %d", len(journal))
	}
	last := journal[len(journal)-1]
	if last.Kind != events.KindOrderCancelled {
		t.Fatalf("expected last journal entry to be KindOrderCancelled, got %s", last.Kind)
	}
	if last.OrderCancelled.Order.OrderID != submitResp.Order.OrderID {
		t.Errorf("expected cancelled event to carry order ID %d, got %d", submitResp.Order.OrderID, last.OrderCancelled.Order.OrderID)
	}
}

// ============================================================================
// PERFORMANCE SMOKE TEST
// ============================================================================

func TestPerformanceSmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance smoke test in short mode")
	}

	eng := matching.NewEngine()
	eng.AddSymbol("AAPL")

	const numOrders = 100000
	start := time.Now()
	var fillCount int64

	for i := 0; i < numOrders; i++ {
		side := domain.SideBuy
		if i%2 == 0 {
			side = domain.SideSell
		}
		order := domain.Order{
			Symbol: "AAPL", Side: side, Type: domain.OrderTypeLimit,
			TimeInForce: domain.TimeInForceGTC,
			Price:       decimal.NewFromFloat(150.00 + float64(i%50)*0.01),
			Quantity:    10, RemainingQuantity: 10,
			UserID: fmt.Sprintf("T%d", i%100), Timestamp: time.Now(),
			OrderID: eng.NextOrderID(),
		}
		result := eng.ProcessOrder(order)
		fillCount += int64(len(result.Trades))
	}

	elapsed := time.Since(start)
	t.Logf("processed %d orders in %v (%.0f orders/sec, %d trades)",
		numOrders, elapsed, float64(numOrders)/elapsed.Seconds(), fillCount)
}
