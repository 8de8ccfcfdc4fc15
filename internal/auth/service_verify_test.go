// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/auth"
	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/sec"
)

/*
TestService_VerifyEmail verifies the happy path: the link token plus the
correct short code flips the verified flag and consumes the artifact, so a
second use fails.
*/
func TestService_VerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "verify@example.com", sec.RoleCareseeker)
	artifact := env.store.artifactFor(user.ID, auth.IntentVerifyEmail)
	require.NotNil(t, artifact)

	// 1. Correct token and code succeed
	require.NoError(t, env.service.VerifyEmail(ctx, artifact.Token, artifact.Code))

	verified, err := env.store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)

	// 2. The artifact is gone; a replay of the same link fails
	err = env.service.VerifyEmail(ctx, artifact.Token, artifact.Code)
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 404, appError.HTTPStatus)
}

/*
TestService_VerifyEmail_WrongCode verifies that a mismatched short code is
refused and does not consume the artifact, so the member can retry.
*/
func TestService_VerifyEmail_WrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "retry@example.com", sec.RoleCareseeker)
	artifact := env.store.artifactFor(user.ID, auth.IntentVerifyEmail)
	require.NotNil(t, artifact)

	// 1. Wrong code is unauthorized
	err := env.service.VerifyEmail(ctx, artifact.Token, "000000")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 401, appError.HTTPStatus)

	// 2. The artifact survived the failed attempt
	require.NotNil(t, env.store.artifactFor(user.ID, auth.IntentVerifyEmail))

	// 3. The correct code still works afterwards
	assert.NoError(t, env.service.VerifyEmail(ctx, artifact.Token, artifact.Code))
}

/*
TestService_VerifyEmail_Expired verifies that an artifact past its window is
refused even with the correct code.
*/
func TestService_VerifyEmail_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "late@example.com", sec.RoleCareseeker)
	artifact := env.store.artifactFor(user.ID, auth.IntentVerifyEmail)
	require.NotNil(t, artifact)

	env.store.expireArtifact(artifact.ID)

	err := env.service.VerifyEmail(ctx, artifact.Token, artifact.Code)
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 401, appError.HTTPStatus)
}

/*
TestService_VerifyEmail_WrongIntent verifies that a password-reset artifact
cannot drive email confirmation.
*/
func TestService_VerifyEmail_WrongIntent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "intent@example.com", sec.RoleCareseeker)
	require.NoError(t, env.service.ForgotPassword(ctx, "intent@example.com"))

	resetArtifact := env.store.artifactFor(user.ID, auth.IntentForgotPassword)
	require.NotNil(t, resetArtifact)

	err := env.service.VerifyEmail(ctx, resetArtifact.Token, resetArtifact.Code)
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
}

/*
TestService_ResendVerification verifies that resending supersedes the previous
artifact and that unknown or already-verified emails are silent no-ops.
*/
func TestService_ResendVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "resend@example.com", sec.RoleCareseeker)
	original := env.store.artifactFor(user.ID, auth.IntentVerifyEmail)
	require.NotNil(t, original)

	// 1. Resend issues a fresh artifact; the old link token is dead
	require.NoError(t, env.service.ResendVerification(ctx, "resend@example.com"))

	replacement := env.store.artifactFor(user.ID, auth.IntentVerifyEmail)
	require.NotNil(t, replacement)
	assert.NotEqual(t, original.ID, replacement.ID)

	_, err := env.store.FindByToken(ctx, original.Token)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return env.mailer.verificationCount() == 2
	}, time.Second, 10*time.Millisecond)

	// 2. Unknown email: success-shaped no-op, no new mail
	require.NoError(t, env.service.ResendVerification(ctx, "ghost@example.com"))

	// 3. Already-verified member: same no-op
	require.NoError(t, env.service.VerifyEmail(ctx, replacement.Token, replacement.Code))
	require.NoError(t, env.service.ResendVerification(ctx, "resend@example.com"))

	assert.Nil(t, env.store.artifactFor(user.ID, auth.IntentVerifyEmail))
	assert.Equal(t, 2, env.mailer.verificationCount())
}

/*
TestService_ForgotPassword verifies artifact issuance and the anti-enumeration
no-ops for unknown emails and federated-only members.
*/
func TestService_ForgotPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "forgot@example.com", sec.RoleCareseeker)

	// 1. A credentialed member gets an artifact and a reset link
	require.NoError(t, env.service.ForgotPassword(ctx, "forgot@example.com"))

	artifact := env.store.artifactFor(user.ID, auth.IntentForgotPassword)
	require.NotNil(t, artifact)

	require.Eventually(t, func() bool {
		return env.mailer.resetCount() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, testBaseURL+"/reset-password?token="+artifact.Token, env.mailer.lastReset().Link)

	// 2. Unknown email: silent success, nothing sent
	require.NoError(t, env.service.ForgotPassword(ctx, "ghost@example.com"))

	// 3. A federated-only member has no password to reset
	_, err := env.service.OAuthCallback(ctx, auth.ProviderGoogle, env.initiateState(t, ""), "auth-code")
	require.NoError(t, err)
	require.NoError(t, env.service.ForgotPassword(ctx, "federated@example.com"))

	assert.Equal(t, 1, env.mailer.resetCount())
}

/*
TestService_ResetPassword verifies the full recovery loop: the new password
works, the old one does not, and the artifact cannot be replayed.
*/
func TestService_ResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "reset@example.com", sec.RoleCareseeker)
	require.NoError(t, env.service.ForgotPassword(ctx, "reset@example.com"))

	artifact := env.store.artifactFor(user.ID, auth.IntentForgotPassword)
	require.NotNil(t, artifact)

	// 1. The reset overwrites the stored hash
	require.NoError(t, env.service.ResetPassword(ctx, artifact.Token, "Harbor#Lights4"))

	_, err := env.service.SignIn(ctx, auth.SignInInput{Email: "reset@example.com", Password: "Sunset#Valley9"})
	require.Error(t, err)
	_, err = env.service.SignIn(ctx, auth.SignInInput{Email: "reset@example.com", Password: "Harbor#Lights4"})
	require.NoError(t, err)

	// 2. The artifact was consumed; replaying the link fails
	err = env.service.ResetPassword(ctx, artifact.Token, "Third#Attempt2")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 404, appError.HTTPStatus)

	// 3. The refused replay changed nothing
	account := env.store.accountFor(user.ID, auth.ProviderCredentials)
	require.NotNil(t, account)
	assert.Equal(t, "hashed:Harbor#Lights4", account.PasswordHash)
}

/*
TestService_ResetPassword_Expired verifies that an expired reset artifact is
refused as a request-shape problem.
*/
func TestService_ResetPassword_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "slow@example.com", sec.RoleCareseeker)
	require.NoError(t, env.service.ForgotPassword(ctx, "slow@example.com"))

	artifact := env.store.artifactFor(user.ID, auth.IntentForgotPassword)
	require.NotNil(t, artifact)
	env.store.expireArtifact(artifact.ID)

	err := env.service.ResetPassword(ctx, artifact.Token, "Harbor#Lights4")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
}

/*
TestService_ResetPassword_WrongIntent verifies that an email-verification
artifact cannot authorize a password reset.
*/
func TestService_ResetPassword_WrongIntent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "cross@example.com", sec.RoleCareseeker)
	verifyArtifact := env.store.artifactFor(user.ID, auth.IntentVerifyEmail)
	require.NotNil(t, verifyArtifact)

	err := env.service.ResetPassword(ctx, verifyArtifact.Token, "Harbor#Lights4")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)

	// The mismatched attempt must not consume the artifact
	assert.NotNil(t, env.store.artifactFor(user.ID, auth.IntentVerifyEmail))
}

/*
TestService_ForgotPassword_Supersedes verifies that a second request replaces
the first artifact, leaving exactly one live reset link.
*/
func TestService_ForgotPassword_Supersedes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.signUp(t, "twice@example.com", sec.RoleCareseeker)

	require.NoError(t, env.service.ForgotPassword(ctx, "twice@example.com"))
	first := env.store.artifactFor(user.ID, auth.IntentForgotPassword)
	require.NotNil(t, first)

	require.NoError(t, env.service.ForgotPassword(ctx, "twice@example.com"))
	second := env.store.artifactFor(user.ID, auth.IntentForgotPassword)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	// The first link is dead, the second resets
	_, err := env.store.FindByToken(ctx, first.Token)
	require.Error(t, err)
	assert.NoError(t, env.service.ResetPassword(ctx, second.Token, "Harbor#Lights4"))
}
