package persistence

import (
	"time"

	"github.com/novaxchg/matching-engine/internal/domain"
)

// OrderRow is the GORM model backing the orders table. Price is stored as
// its decimal string form rather than float64 so Postgres's NUMERIC
// column, not IEEE 754, is the source of truth for stored precision.
// CreatedAt/UpdatedAt follow GORM's convention: set automatically on
// insert, and named explicitly here so the upsert-on-conflict clause in
// flush can list UpdatedAt among the columns to refresh.
type OrderRow struct {
	OrderID           uint64 `gorm:"primaryKey"`
	UserID            string `gorm:"index"`
	Symbol            string `gorm:"index"`
	Type              int
	Side              int
	Price             string `gorm:"type:numeric"`
	Quantity          int64
	RemainingQuantity int64
	Status            int
	TimeInForce       int
	Timestamp         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewOrderRow converts a domain.Order into its persisted row form.
func NewOrderRow(o domain.Order) OrderRow {
	return OrderRow{
		OrderID:           o.OrderID,
		UserID:            o.UserID,
		Symbol:            o.Symbol,
		Type:              int(o.Type),
		Side:              int(o.Side),
		Price:             o.Price.String(),
		Quantity:          o.Quantity,
		RemainingQuantity: o.RemainingQuantity,
		Status:            int(o.Status),
		TimeInForce:       int(o.TimeInForce),
		Timestamp:         o.Timestamp,
	}
}

// TradeRow is the GORM model backing the trades table. Trades are
// insert-only: once executed a trade's fields never change.
type TradeRow struct {
	TradeID     uint64 `gorm:"primaryKey"`
	BuyOrderID  uint64 `gorm:"index"`
	SellOrderID uint64 `gorm:"index"`
	BuyUserID   string
	SellUserID  string
	Symbol      string `gorm:"index"`
	Price       string
	Quantity    int64
	Timestamp   time.Time
}

// NewTradeRow converts a domain.Trade into its persisted row form.
func NewTradeRow(t domain.Trade) TradeRow {
	return TradeRow{
		TradeID:     t.TradeID,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyUserID:   t.BuyUserID,
		SellUserID:  t.SellUserID,
		Symbol:      t.Symbol,
		Price:       t.Price.String(),
		Quantity:    t.Quantity,
		Timestamp:   t.Timestamp,
	}
}
