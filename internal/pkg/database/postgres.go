package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Pool sizes the ledger store connection pool for one process
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

var (
	// APIPool serves check-ins. Each visit holds a connection for a few
	// short statements, and the stamp-card function takes row locks, so the
	// pool stays below Postgres' own limit with room for the worker.
	APIPool = Pool{MaxOpen: 30, MaxIdle: 10, MaxLifetime: 30 * time.Minute, MaxIdleTime: 5 * time.Minute}

	// WorkerPool serves the scheduled jobs, which run one at a time.
	WorkerPool = Pool{MaxOpen: 4, MaxIdle: 2, MaxLifetime: 30 * time.Minute, MaxIdleTime: 10 * time.Minute}
)

// NewPostgres opens the ledger store and verifies it answers within ctx
func NewPostgres(ctx context.Context, databaseURL string, pool Pool) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
	db.SetConnMaxIdleTime(pool.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().
		Int("max_open_conns", pool.MaxOpen).
		Int("max_idle_conns", pool.MaxIdle).
		Msg("Connected to ledger store")
	return db, nil
}

// ClosePostgres closes the ledger store pool
func ClosePostgres(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing ledger store")
		return
	}
	log.Info().Msg("Ledger store closed")
}
