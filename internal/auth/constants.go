// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth

import "time"

// # Authentication Providers

const (
	// ProviderCredentials is the password-based authentication method.
	ProviderCredentials = "credentials"

	// ProviderGoogle is the Google OAuth federation method.
	ProviderGoogle = "google"

	// CredentialsAccountID is the fixed provider-account sentinel for the
	// password method, which has no external account identifier.
	CredentialsAccountID = "credentials"
)

// # Verification Intents

const (
	// IntentVerifyEmail marks an artifact proving email ownership at sign-up.
	IntentVerifyEmail = "verify_email"

	// IntentForgotPassword marks an artifact authorizing a password reset.
	IntentForgotPassword = "forgot_password"
)

// # Lifetimes & Sizes

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	// Kept short to minimize the impact of a leaked token.
	AccessTokenTTL = 30 * time.Minute

	// RefreshTokenTTL is the duration a refresh token remains valid.
	// Long-lived to provide a good user experience across devices.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// SessionLifetime is how far a Session's expiry is set (and pushed
	// forward on every refresh). It matches RefreshTokenTTL so a token can
	// never outlive its session by construction.
	SessionLifetime = 30 * 24 * time.Hour

	// VerificationCodeTTL is the validity window of email-verification and
	// password-reset artifacts. Short, since they are requested on demand.
	VerificationCodeTTL = 15 * time.Minute

	// VerificationCodeDigits is the length of the human-enterable short value.
	VerificationCodeDigits = 6

	// VerificationTokenLength is the byte length of the link-embedded token.
	VerificationTokenLength = 32

	// OAuthStateTTL bounds how long an initiated OAuth round-trip may take.
	OAuthStateTTL = 10 * time.Minute

	// OAuthStateLength is the byte length of the random CSRF state value.
	OAuthStateLength = 32
)
