// Package persistence batches journal events and commits them to Postgres
// via GORM. It is one of the four independent consumers fanned out from
// the output ring.
//
// Design Decisions (generalized from the teacher's disruptor.EventBatcher,
// which batched writes to a local append-only file):
//
// 1. Size/time-bounded batching: flush at BatchSize events or FlushInterval,
//    whichever comes first, so a quiet period doesn't leave events
//    uncommitted for long and a burst doesn't commit one row at a time.
// 2. One transaction per batch: orders are upserted on order_id, trades are
//    inserted (a trade never changes once executed).
// 3. Commit failures are logged and the batch is dropped, not retried -
//    retrying risks re-applying a partially-committed batch; a production
//    system would want a dead-letter queue, which is out of this spec's
//    scope.
// 4. Drain on shutdown: remaining queued events are flushed before the
//    consumer goroutine exits.
package persistence

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/novaxchg/matching-engine/internal/events"
)

// Config configures the batched persistence consumer.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueCapacity int
}

// DefaultConfig mirrors the batching parameters named in SPEC_FULL.md.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1000,
		FlushInterval: 100 * time.Millisecond,
		QueueCapacity: 100000,
	}
}

// Consumer batches events.Event values and commits them to Postgres.
type Consumer struct {
	db     *gorm.DB
	cfg    Config
	logger *zap.Logger

	queue        chan events.Event
	shutdownCh   chan struct{}
	shutdownDone chan struct{}
}

// NewConsumer creates a persistence consumer backed by db.
func NewConsumer(db *gorm.DB, cfg Config, logger *zap.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 100 * time.Millisecond
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Consumer{
		db:           db,
		cfg:          cfg,
		logger:       logger,
		queue:        make(chan events.Event, cfg.QueueCapacity),
		shutdownCh:   make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
}

// Handle is a ring.Handler[events.Event]: it enqueues the event for
// batched commit. Non-blocking - if the queue is saturated the event is
// dropped and logged, matching the teacher's QueueEvent drop-on-full
// policy.
func (c *Consumer) Handle(seq int64, ev events.Event) {
	select {
	case c.queue <- ev:
	default:
		c.logger.Warn("persistence queue full, dropping event", zap.Uint64("sequence", ev.SequenceNum))
	}
}

// Start launches the batching goroutine.
func (c *Consumer) Start() {
	go c.batchLoop()
}

func (c *Consumer) batchLoop() {
	defer close(c.shutdownDone)

	batch := make([]events.Event, 0, c.cfg.BatchSize)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.queue:
			batch = append(batch, ev)
			if len(batch) >= c.cfg.BatchSize {
				c.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				c.flush(batch)
				batch = batch[:0]
			}

		case <-c.shutdownCh:
			if len(batch) > 0 {
				c.flush(batch)
			}
			for {
				select {
				case ev := <-c.queue:
					c.flush([]events.Event{ev})
				default:
					return
				}
			}
		}
	}
}

// flush commits one batch inside a single transaction: orders are upserted
// on order_id via a single multi-row clause.OnConflict, trades are inserted.
// Deduplicating into a map first means an order that was both placed and
// later cancelled within the same batch commits once, with its final state.
func (c *Consumer) flush(batch []events.Event) {
	orders := make(map[uint64]OrderRow)
	var trades []TradeRow

	for _, ev := range batch {
		switch ev.Kind {
		case events.KindOrderPlaced:
			orders[ev.OrderPlaced.Order.OrderID] = NewOrderRow(ev.OrderPlaced.Order)
		case events.KindOrderCancelled:
			orders[ev.OrderCancelled.Order.OrderID] = NewOrderRow(ev.OrderCancelled.Order)
		case events.KindTradeExecuted:
			trades = append(trades, NewTradeRow(ev.TradeExecuted.Trade))
		}
	}

	rows := make([]OrderRow, 0, len(orders))
	for _, row := range orders {
		rows = append(rows, row)
	}

	err := c.db.WithContext(context.Background()).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"remaining_quantity", "status", "updated_at"}),
			}).Create(&rows).Error
			if err != nil {
				return err
			}
		}
		if len(trades) > 0 {
			if err := tx.Create(&trades).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("persistence batch commit failed", zap.Error(err), zap.Int("batch_size", len(batch)))
	}
}

// Shutdown flushes remaining queued events and stops the batching
// goroutine.
func (c *Consumer) Shutdown() {
	close(c.shutdownCh)
	<-c.shutdownDone
}
