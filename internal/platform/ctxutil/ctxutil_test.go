// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package ctxutil_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/carelinkhq/carelink/internal/platform/ctxutil"
	"github.com/carelinkhq/carelink/internal/platform/sec"
)

/*
TestContext_RequestID verifies storing and retrieving the request ID.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. After attaching, the same value comes back
	ctx = ctxutil.WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", ctxutil.GetRequestID(ctx))
}

/*
TestContext_Logger verifies the logger round trip and the default fallback.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()

	// 1. Without an attached logger the global default is returned
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. An attached logger takes precedence
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Same(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_AuthUser verifies claims attachment and the nil default for
unauthenticated contexts.
*/
func TestContext_AuthUser(t *testing.T) {
	ctx := context.Background()

	// 1. Unauthenticated contexts yield nil claims
	assert.Nil(t, ctxutil.GetAuthUser(ctx))

	// 2. Attached claims come back intact
	claims := &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		SessionID:        "session-1",
		Roles:            []string{sec.RoleAdmin},
	}
	ctx = ctxutil.WithAuthUser(ctx, claims)

	got := ctxutil.GetAuthUser(ctx)
	assert.Equal(t, "user-1", got.UserID())
	assert.Equal(t, "session-1", got.SessionID)
	assert.True(t, sec.HasRole(got.Roles, sec.RoleAdmin))
}
