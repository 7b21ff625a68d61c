package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/order-maintenance/internal/config"
)

// ConnectReadOnly opens a small lib/pq pool used for reporting queries.
func ConnectReadOnly(cfg config.PostgresConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN()+" default_transaction_read_only=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	conn.SetMaxOpenConns(2)

	log.Debug().Msg("Connected to PostgreSQL (read-only)")
	return conn, nil
}
