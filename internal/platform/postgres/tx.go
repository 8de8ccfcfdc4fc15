// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelinkhq/carelink/internal/platform/ctxkey"
)

// Querier is the subset of pgx operations shared by [*pgxpool.Pool] and
// [pgx.Tx]. Store implementations run their statements against a Querier so
// the same code works inside and outside a transaction scope.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs functions inside a single database transaction whose handle
// travels in the context.
//
// # Usage
//
// The auth service wraps each multi-write operation in WithinTx; every store
// call made with the scoped context joins the same transaction, so all writes
// of one request commit or roll back as a unit — even when the caller
// disconnects mid-request.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager constructs a [TxManager] bound to the connection pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx executes fn inside a transaction.
//
// The transaction commits when fn returns nil and rolls back otherwise.
// Nested calls join the ambient transaction instead of opening a second one.
//
// # Cancellation
//
// Commit/rollback run under a context detached from the caller's cancellation
// signal so a client disconnect cannot leave the unit of work half-applied.
func (manager *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := manager.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}

	// The terminal commit/rollback must proceed even if the request context
	// was cancelled mid-flight.
	finishCtx := context.WithoutCancel(ctx)

	if err := fn(context.WithValue(ctx, ctxkey.KeyTx, tx)); err != nil {
		if rbErr := tx.Rollback(finishCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(finishCtx); err != nil {
		return fmt.Errorf("postgres: commit failed: %w", err)
	}

	return nil
}

// TxFrom extracts the ambient transaction from the context, or nil.
func TxFrom(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(ctxkey.KeyTx).(pgx.Tx)
	return tx
}

// QuerierFrom returns the ambient transaction if one is in scope, otherwise
// the fallback pool.
func QuerierFrom(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFrom(ctx); tx != nil {
		return tx
	}
	return pool
}
