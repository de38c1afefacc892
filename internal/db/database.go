//go:generate mockgen -source ./database.go -destination=./mocks/database.go -package=mock_database

// Package db wraps a pgx pool with scany scanning. Repositories take DB and
// Tx so their tests can run against mocks.
package db

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Querier is what the pool and an open transaction have in common.
type Querier interface {
	Get(ctx context.Context, dest any, query string, args ...any) error
	Select(ctx context.Context, dest any, query string, args ...any) error
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

type DB interface {
	Querier
	BeginTx(ctx context.Context) (Tx, error)
}

type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// executor is satisfied by both *pgxpool.Pool and pgx.Tx.
type executor interface {
	pgxscan.Querier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type scanning struct {
	ex executor
}

func (s scanning) Get(ctx context.Context, dest any, query string, args ...any) error {
	return pgxscan.Get(ctx, s.ex, dest, query, args...)
}

func (s scanning) Select(ctx context.Context, dest any, query string, args ...any) error {
	return pgxscan.Select(ctx, s.ex, dest, query, args...)
}

func (s scanning) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return s.ex.Exec(ctx, query, args...)
}

// Pool is the postgres-backed DB.
type Pool struct {
	scanning
	pool *pgxpool.Pool
}

var _ DB = (*Pool)(nil)

// Connect opens a pool for dsn and pings the server once.
func Connect(ctx context.Context, dsn string) (*Pool, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Pool{scanning: scanning{ex: pool}, pool: pool}, nil
}

func (p *Pool) Close() {
	p.pool.Close()
}

// BeginTx starts a read-committed transaction.
func (p *Pool) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &txn{scanning: scanning{ex: tx}, tx: tx}, nil
}

type txn struct {
	scanning
	tx pgx.Tx
}

func (t *txn) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txn) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
