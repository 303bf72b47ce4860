package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Pool sizing for the board workload: many short reads per open view,
// the occasional gate-approval transaction. Idle connections recycle
// fast so a quiet deployment does not pin Postgres slots.
const (
	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxIdleTime = 10 * time.Minute
	connMaxLifetime = time.Hour
	connectTimeout  = 10 * time.Second
)

// Open connects through the pgx stdlib driver and verifies the
// connection before handing the pool out.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
