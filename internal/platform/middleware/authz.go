// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package middleware

import (
	"net/http"
	"strings"

	"github.com/carelinkhq/carelink/internal/platform/ctxutil"
	"github.com/carelinkhq/carelink/internal/platform/sec"
)

// TokenVerifier abstracts access-token verification so the middleware does not
// depend on a concrete issuer.
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*sec.AuthClaims, error)
}

// # Authentication

// Authenticate extracts the Bearer token from the Authorization header,
// verifies it, and stores the resulting claims in the request context.
//
// It is permissive: requests without a token (or with an invalid one) still
// proceed, just without an identity. Enforcement is the job of [RequireAuth]
// and [RequireRole] on the routes that need it.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Extract the Authorization header
			authHeader := request.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// 2. Require the Bearer scheme
			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// 3. Verify signature, expiry, and token type
			claims, err := verifier.VerifyAccessToken(token)
			if err != nil {
				next.ServeHTTP(writer, request)
				return
			}

			// 4. Inject the verified identity into the context
			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Authorization

// RequireAuth rejects requests that did not pass authentication.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			if ctxutil.GetAuthUser(request.Context()) == nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireRole rejects authenticated requests whose token does not carry the
// named role. Role checks are flat membership tests: an admin calling a
// caregiver-only route is rejected like anyone else.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			claims := ctxutil.GetAuthUser(request.Context())
			if claims == nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !sec.HasRole(claims.Roles, role) {
				writeError(writer, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
