package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the shared connection pool. The pool arbitrates concurrent
// access internally; callers never need external locking.
type DB struct {
	*sql.DB
}

// NewConnection opens the PostgreSQL connection pool and verifies
// connectivity with a single ping. A failed ping is a fatal startup
// condition for the process: the caller is expected to exit rather than
// operate degraded.
func NewConnection(host, port, user, password, name string, poolMax int) (*DB, error) {
	if poolMax <= 0 {
		poolMax = 20
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(poolMax)
	db.SetMaxIdleConns(min(poolMax, 5))
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}
