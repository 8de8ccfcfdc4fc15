// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/platform/sec"
)

const testSecret = "0123456789abcdef0123456789abcdef"

/*
TestTokenIssuer_MintAndDecode verifies the round trip for both token types and
that the minted claims carry what the middleware and refresh flow need.
*/
func TestTokenIssuer_MintAndDecode(t *testing.T) {
	issuer, err := sec.NewTokenIssuer(testSecret, "carelink.app")
	require.NoError(t, err)

	// 1. Access token carries subject, session, and roles
	access, err := issuer.MintAccessToken("user-1", "session-1", []string{"careseeker"}, time.Minute)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, []string{"careseeker"}, claims.Roles)
	assert.Equal(t, sec.TokenTypeAccess, claims.TokenType)
	assert.Equal(t, "carelink.app", claims.Issuer)

	// 2. Refresh token carries subject and session but no roles
	refresh, err := issuer.MintRefreshToken("user-1", "session-1", time.Hour)
	require.NoError(t, err)

	claims, err = issuer.Decode(refresh, sec.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Empty(t, claims.Roles)
}

/*
TestTokenIssuer_TypeMismatch verifies that a token of one type is rejected
when presented as the other.
*/
func TestTokenIssuer_TypeMismatch(t *testing.T) {
	issuer, err := sec.NewTokenIssuer(testSecret, "carelink.app")
	require.NoError(t, err)

	access, err := issuer.MintAccessToken("user-1", "session-1", nil, time.Minute)
	require.NoError(t, err)
	refresh, err := issuer.MintRefreshToken("user-1", "session-1", time.Hour)
	require.NoError(t, err)

	// 1. Refresh token can never authenticate a request
	_, err = issuer.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, sec.ErrWrongTokenUse)

	// 2. Access token can never drive a refresh
	_, err = issuer.Decode(access, sec.TokenTypeRefresh)
	assert.ErrorIs(t, err, sec.ErrWrongTokenUse)
}

/*
TestTokenIssuer_Expiry verifies that a token past its 'exp' claim is rejected
with ErrTokenExpired.
*/
func TestTokenIssuer_Expiry(t *testing.T) {
	issuer, err := sec.NewTokenIssuer(testSecret, "carelink.app")
	require.NoError(t, err)

	expired, err := issuer.MintAccessToken("user-1", "session-1", nil, -time.Minute)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(expired)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestTokenIssuer_WrongSecret verifies that a token signed under a different
secret fails signature verification.
*/
func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer, err := sec.NewTokenIssuer(testSecret, "carelink.app")
	require.NoError(t, err)
	other, err := sec.NewTokenIssuer("ffffffffffffffffffffffffffffffff", "carelink.app")
	require.NoError(t, err)

	token, err := other.MintAccessToken("user-1", "session-1", nil, time.Minute)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestTokenIssuer_Garbage verifies that non-JWT input is rejected as invalid.
*/
func TestTokenIssuer_Garbage(t *testing.T) {
	issuer, err := sec.NewTokenIssuer(testSecret, "carelink.app")
	require.NoError(t, err)

	for _, input := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.VerifyAccessToken(input)
		assert.ErrorIs(t, err, sec.ErrTokenInvalid)
	}
}

/*
TestNewTokenIssuer_ShortSecret verifies the minimum secret length guard.
*/
func TestNewTokenIssuer_ShortSecret(t *testing.T) {
	_, err := sec.NewTokenIssuer("too-short", "carelink.app")
	assert.Error(t, err)
}

/*
TestGenerateNumericCode verifies length and character set of emailed codes.
*/
func TestGenerateNumericCode(t *testing.T) {
	code, err := sec.GenerateNumericCode(6)
	require.NoError(t, err)

	assert.Len(t, code, 6)
	for _, character := range code {
		assert.GreaterOrEqual(t, character, '0')
		assert.LessOrEqual(t, character, '9')
	}
}

/*
TestGenerateSecureToken verifies token length and uniqueness across draws.
*/
func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	// 32 random bytes, base64url without padding
	assert.Len(t, first, 43)
	assert.NotEqual(t, first, second)
}
