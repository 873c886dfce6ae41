// Command server runs the matching exchange.
//
// Architecture Overview:
//
//	┌─────────────┐     ┌─────────────┐     ┌──────────────┐
//	│   Client    │────▶│  Gateway    │────▶│  Input Ring  │
//	│  (HTTP)     │     │  (HTTP API) │     │ (SPSC ring)  │
//	└─────────────┘     └─────────────┘     └──────┬───────┘
//	                                                │
//	                                                ▼
//	                                        ┌───────────────┐
//	                                        │   engine.     │
//	                                        │   Processor   │
//	                                        └───────┬───────┘
//	                                                │
//	                                                ▼
//	                                        ┌───────────────┐
//	                                        │  Output Ring  │
//	                                        └───────┬───────┘
//	                        ┌───────────────┬────────┴────────┬───────────────┐
//	                        ▼               ▼                 ▼               ▼
//	                 marketdata.      persistence.      notify.Hub      audit.
//	                 Publisher        Consumer                          Producer
//
// The input ring has one producer (the gateway's HTTP handlers, serialized
// through ring.Sequencer.Next/TryNext) and one consumer (engine.Processor).
// The output ring has one producer (engine.Processor) and four independent
// consumers, each with its own SequenceBarrier against the same cursor -
// none observes another's progress, per the fan-out topology named in
// SPEC_FULL.md's external-interfaces section.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/novaxchg/matching-engine/internal/audit"
	"github.com/novaxchg/matching-engine/internal/config"
	"github.com/novaxchg/matching-engine/internal/domain"
	"github.com/novaxchg/matching-engine/internal/engine"
	"github.com/novaxchg/matching-engine/internal/events"
	"github.com/novaxchg/matching-engine/internal/gateway"
	"github.com/novaxchg/matching-engine/internal/marketdata"
	"github.com/novaxchg/matching-engine/internal/metrics"
	"github.com/novaxchg/matching-engine/internal/notify"
	"github.com/novaxchg/matching-engine/internal/persistence"
	"github.com/novaxchg/matching-engine/internal/ring"
)

func main() {
	cfg := config.Load()

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	markets := seedMarkets()

	diagLog, err := events.NewDiagnosticLog(events.DiagnosticLogConfig{Path: "exchange_diagnostic.log", SyncMode: false})
	if err != nil {
		logger.Fatal("open diagnostic log", zap.Error(err))
	}
	defer diagLog.Close()

	inputRing := ring.NewRingBuffer[engine.Request](cfg.InputRingSize)
	outputRing := ring.NewRingBuffer[events.Event](cfg.OutputRingSize)
	outputSeq := ring.NewSequencer(cfg.OutputRingSize)

	proc := engine.NewProcessor(engine.Config{
		Markets:    markets,
		DiagLog:    diagLog,
		OutputRing: outputRing,
		OutputSeq:  outputSeq,
		Logger:     logger,
	})

	inputSeq := ring.NewSequencer(cfg.InputRingSize)
	inputBarrier := ring.NewSequenceBarrier(inputSeq.Cursor(), waitStrategy(cfg.WaitStrategy))
	inputProcessor := ring.NewEventProcessor[engine.Request](inputRing, inputBarrier, proc.Handle)
	// Deliberately no OnPanic: a panic here is a violated matching invariant
	// and must crash the process, not be swallowed.
	inputProcessor.Start()
	inputSeq.SetGatingSequences(inputProcessor.Sequence())

	publisher := marketdata.NewPublisher(1000)
	defer publisher.Close()

	db, err := persistence.OpenPostgres(cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	persistenceConsumer := persistence.NewConsumer(db, persistence.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.BatchTimeoutMs) * time.Millisecond,
		QueueCapacity: cfg.QueueCapacity,
	}, logger)
	persistenceConsumer.Start()
	defer persistenceConsumer.Shutdown()

	hub := notify.NewHub(16, 256, logger)

	auditProducer := audit.NewProducer(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
	defer auditProducer.Close()

	outputConsumers := []*ring.EventProcessor[events.Event]{
		startOutputConsumer(outputRing, outputSeq, cfg.WaitStrategy, publisher.Handle, logger),
		startOutputConsumer(outputRing, outputSeq, cfg.WaitStrategy, persistenceConsumer.Handle, logger),
		startOutputConsumer(outputRing, outputSeq, cfg.WaitStrategy, hub.Handle, logger),
		startOutputConsumer(outputRing, outputSeq, cfg.WaitStrategy, auditProducer.Handle, logger),
	}
	gating := make([]*ring.Sequence, len(outputConsumers))
	for i, c := range outputConsumers {
		gating[i] = c.Sequence()
	}
	outputSeq.SetGatingSequences(gating...)

	gw := gateway.NewGateway(inputRing, inputSeq, logger)

	mux := gw.Mux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/notify", func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("client_id")
		if clientID == "" {
			http.Error(w, "client_id required", http.StatusBadRequest)
			return
		}
		if err := hub.ServeWS(w, r, clientID); err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
		}
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go reportRingUtilization(inputSeq, inputProcessor.Sequence(), cfg.InputRingSize, "input")

	go func() {
		logger.Info("exchange listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	inputProcessor.Shutdown()
	for _, c := range outputConsumers {
		c.Shutdown()
	}
	logger.Info("stopped")
}

func startOutputConsumer(
	rb *ring.RingBuffer[events.Event],
	seq *ring.Sequencer,
	strategy config.WaitStrategy,
	handler ring.Handler[events.Event],
	logger *zap.Logger,
) *ring.EventProcessor[events.Event] {
	barrier := ring.NewSequenceBarrier(seq.Cursor(), waitStrategy(strategy))
	proc := ring.NewEventProcessor[events.Event](rb, barrier, handler)
	proc.OnPanic(func(seq int64, recovered any) {
		logger.Error("output consumer recovered from panic", zap.Int64("sequence", seq), zap.Any("panic", recovered))
	})
	proc.Start()
	return proc
}

func waitStrategy(s config.WaitStrategy) ring.WaitStrategy {
	switch s {
	case config.WaitStrategyBusy:
		return ring.BusySpinWaitStrategy{}
	case config.WaitStrategyParking:
		return ring.NewSleepingWaitStrategy()
	default:
		return ring.NewYieldingWaitStrategy()
	}
}

func seedMarkets() []domain.Market {
	today := time.Now()
	open := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	close := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, time.UTC)

	tick := decimal.NewFromFloat(0.01)
	return []domain.Market{
		{Symbol: "BTCUSD", Status: domain.MarketStatusOpen, TickSize: tick, MinOrderSize: 1, OpenTime: open, CloseTime: close},
		{Symbol: "ETHUSD", Status: domain.MarketStatusOpen, TickSize: tick, MinOrderSize: 1, OpenTime: open, CloseTime: close},
		{Symbol: "AAPL", Status: domain.MarketStatusOpen, TickSize: tick, MinOrderSize: 1, OpenTime: open, CloseTime: close},
	}
}

func reportRingUtilization(seq *ring.Sequencer, consumerSeq *ring.Sequence, size int64, name string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		claimed := seq.Cursor().Get()
		consumed := consumerSeq.Get()
		occupied := claimed - consumed
		if occupied < 0 {
			occupied = 0
		}
		metrics.SetRingUtilization(name, float64(occupied)/float64(size))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	return cfg.Build()
}
