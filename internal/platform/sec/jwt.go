// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

// Package sec provides the cryptographic primitives for the identity core:
// Argon2id password hashing, HS256 token minting/verification, and random
// artifact generation.
//
// # Architecture
//
// This package isolates security-sensitive code from the domain logic. It is
// injected into the application layer through small capability interfaces
// (token issuer, password hasher) so tests can substitute fakes.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access tokens from refresh tokens. A token of one
// type is never accepted where the other is expected.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Decode failure modes. All of them must fail closed: the caller maps every
// one of these to an Unauthorized response without distinguishing them.
var (
	ErrTokenInvalid  = errors.New("sec: invalid token")
	ErrTokenExpired  = errors.New("sec: token expired")
	ErrWrongTokenUse = errors.New("sec: token type mismatch")
)

// AuthClaims is the payload embedded in both token types.
//
// Access tokens carry the subject, the owning session, and the role names so
// the middleware can authorize requests without a database round-trip.
// Refresh tokens carry only subject and session; roles are re-resolved at
// refresh time so role changes propagate.
type AuthClaims struct {
	jwt.RegisteredClaims

	SessionID string    `json:"sessionId"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"type"`
}

// UserID returns the token subject (the user id).
func (c *AuthClaims) UserID() string { return c.Subject }

// TokenIssuer mints and verifies HS256-signed access and refresh tokens.
//
// A token's signature being valid is necessary but not sufficient: the
// session it references must still exist, which the auth service checks on
// refresh. Tokens are never revoked individually.
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer creates a [TokenIssuer] with a symmetric signing secret.
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("sec: signing secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}, nil
}

// MintAccessToken creates a short-lived access token carrying the subject id,
// session id, and role names.
func (issuer *TokenIssuer) MintAccessToken(userID, sessionID string, roles []string, timeToLive time.Duration) (string, error) {
	return issuer.mint(userID, sessionID, roles, TokenTypeAccess, timeToLive)
}

// MintRefreshToken creates a long-lived refresh token carrying only the
// subject id and session id.
func (issuer *TokenIssuer) MintRefreshToken(userID, sessionID string, timeToLive time.Duration) (string, error) {
	return issuer.mint(userID, sessionID, nil, TokenTypeRefresh, timeToLive)
}

func (issuer *TokenIssuer) mint(userID, sessionID string, roles []string, tokenType TokenType, timeToLive time.Duration) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(timeToLive)),
		},
		SessionID: sessionID,
		Roles:     roles,
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signed, nil
}

// Decode verifies the signature, expiry, and type of a token string.
//
// # Failure Modes
//   - ErrTokenExpired: the 'exp' claim is in the past.
//   - ErrWrongTokenUse: a refresh token presented as access, or vice versa.
//   - ErrTokenInvalid: everything else (bad signature, wrong alg, garbage).
func (issuer *TokenIssuer) Decode(tokenString string, expected TokenType) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return issuer.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != expected {
		return nil, ErrWrongTokenUse
	}

	return claims, nil
}

// VerifyAccessToken decodes a bearer token for request authentication.
// It is the [TokenIssuer] entry point used by the HTTP middleware.
func (issuer *TokenIssuer) VerifyAccessToken(tokenString string) (*AuthClaims, error) {
	return issuer.Decode(tokenString, TokenTypeAccess)
}
