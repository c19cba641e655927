package utils

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Pool defaults sized for a single chat-core instance; override per
// deployment through PostgresPoolConfig.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

// PostgresPoolConfig controls database/sql pool behavior. Zero values
// fall back to the defaults above.
type PostgresPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// OpenPostgres opens and verifies a Postgres pool. driverName is "pgx"
// in production wiring. dsn must not be logged; it contains secrets.
func OpenPostgres(ctx context.Context, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(orInt(pool.MaxOpenConns, defaultMaxOpenConns))
	db.SetMaxIdleConns(orInt(pool.MaxIdleConns, defaultMaxIdleConns))
	db.SetConnMaxLifetime(orDur(pool.ConnMaxLifetime, defaultConnMaxLifetime))
	db.SetConnMaxIdleTime(orDur(pool.ConnMaxIdleTime, defaultConnMaxIdleTime))

	if err := HealthCheck(ctx, db, orDur(pool.PingTimeout, defaultPingTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// HealthCheck pings the DB with a timeout.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDur(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
