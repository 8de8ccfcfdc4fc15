// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carelinkhq/carelink/internal/platform/apperr"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique-constraint failures.
// The database constraint is the authority on uniqueness races (two
// concurrent sign-ups with the same email); application-level existence
// checks are an optimization only.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// NotFound maps pgx.ErrNoRows onto a named-resource 404; anything else
// becomes an opaque internal error so storage details never leak to clients.
func NotFound(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}
	return apperr.Internal(err)
}
