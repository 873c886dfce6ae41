// Package audit is the Kafka-backed audit-trail consumer fanned out from
// the output ring. It writes every journal event to a Kafka topic as an
// immutable, independently-replayable record of everything the matching
// core did - separate from the authoritative in-memory journal and from
// the Postgres rows persistence writes, so a downstream compliance system
// can consume the trail without touching either.
//
// Grounded on UmarFarooq-MP-Loki/infra/kafka/producer.go: same
// kafka.Writer construction (TCP addresses, RequireAll acks, a small
// BatchTimeout) adapted from a generic key/value Send into one that
// encodes events.Event as JSON and keys by symbol so a topic partition
// holds one symbol's events in emission order.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/novaxchg/matching-engine/internal/events"
)

// Producer writes audit events to Kafka.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a Kafka-backed audit producer writing to topic on the
// given brokers.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: logger,
	}
}

// Handle is a ring.Handler[events.Event]: it writes every event to Kafka,
// keyed by the symbol it concerns. Write failures are logged, not retried -
// the audit trail is best-effort ambient observability, not the engine's
// source of truth.
func (p *Producer) Handle(seq int64, ev events.Event) {
	key := auditKey(ev)
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("audit: marshal failed", zap.Error(err), zap.Uint64("sequence", ev.SequenceNum))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		p.logger.Error("audit: kafka write failed", zap.Error(err), zap.Uint64("sequence", ev.SequenceNum))
	}
}

func auditKey(ev events.Event) string {
	switch ev.Kind {
	case events.KindOrderPlaced:
		return ev.OrderPlaced.Order.Symbol
	case events.KindTradeExecuted:
		return ev.TradeExecuted.Trade.Symbol
	case events.KindMarketDataUpdated:
		return ev.MarketDataUpdated.Symbol
	default:
		return ""
	}
}

// Close flushes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
