// Package db is the relational store for posts, links, archives, artifacts
// and the supplementary job queues. Every status transition goes through a
// single atomic UPDATE ... WHERE id = ? AND status = ? so the serialization
// point is the database row, not an in-process lock.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DB wraps *sqlx.DB with the archive-specific query methods defined
// alongside each entity (posts.go, links.go, archives.go, artifacts.go,
// jobs.go).
type DB struct {
	*sqlx.DB
}

// Open connects to Postgres, wiring the connection through otelsqlx so
// every query emits a span.
func Open(dsn string) (*DB, error) {
	conn, err := otelsqlx.Connect("postgres", dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return &DB{DB: conn}, nil
}

// Health reports whether the pool can still reach Postgres.
func (d *DB) Health(ctx context.Context) error {
	return d.PingContext(ctx)
}

var global *DB

// Set installs d as the process-global handle, mirroring config.Set/Get.
func Set(d *DB) { global = d }

// Get returns the process-global handle.
func Get() *DB {
	if global == nil {
		panic("db: Get() called before Set()")
	}
	return global
}
