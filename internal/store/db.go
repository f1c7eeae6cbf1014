package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Pool sizing is modest: the engine is driven by short-lived CLI invocations
// and background index feeds, not a request-per-connection serving tier.
const (
	maxOpenConns    = 8
	maxIdleConns    = 4
	connMaxIdleTime = 2 * time.Minute
	connMaxLifetime = time.Hour
	connectTimeout  = 5 * time.Second
)

// Open builds the Postgres pool and verifies the connection before returning,
// so a bad DATABASE_URL fails at startup instead of on the first mutation.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	return db, nil
}
