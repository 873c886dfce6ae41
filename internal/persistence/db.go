package persistence

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenPostgres connects to Postgres via the given DSN and auto-migrates
// the order/trade tables. Grounded on the same gorm.Open(postgres.Open(...))
// shape the identities service uses, minus its slog-gorm logger adapter:
// this exchange already standardizes on zap, so no second logging library
// is introduced just for GORM's query log.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&OrderRow{}, &TradeRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return db, nil
}
