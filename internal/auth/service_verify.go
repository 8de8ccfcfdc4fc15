// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/sec"
	"github.com/carelinkhq/carelink/pkg/uuid"
)

// # Artifact Issuance

// issueVerificationCode creates a fresh single-use artifact for the given
// intent, superseding any live artifact for the same (user, intent).
func (service *Service) issueVerificationCode(ctx context.Context, userID, intent string) (*VerificationCode, error) {

	shortCode, err := sec.GenerateNumericCode(VerificationCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("auth_service_generate_code_failed: %w", err)
	}

	linkToken, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_generate_token_failed: %w", err)
	}

	artifact := &VerificationCode{
		ID:        uuid.New(),
		UserID:    userID,
		Intent:    intent,
		Code:      shortCode,
		Token:     linkToken,
		ExpiresAt: time.Now().Add(VerificationCodeTTL),
		CreatedAt: time.Now(),
	}

	if err := service.codes.Replace(ctx, artifact); err != nil {
		return nil, fmt.Errorf("auth_service_store_code_failed: %w", err)
	}

	return artifact, nil
}

// dispatchVerificationEmail sends the verification message in the background.
// Delivery failures are logged and never surfaced: the artifact is already
// persisted and can be re-sent on demand.
func (service *Service) dispatchVerificationEmail(ctx context.Context, email string, artifact *VerificationCode) {
	link := fmt.Sprintf("%s/verify-email?token=%s", service.baseURL, artifact.Token)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if err := service.mailer.SendVerificationEmail(sendCtx, email, artifact.Code, link); err != nil {
			service.logger.ErrorContext(sendCtx, "verification_email_failed", slog.Any("error", err))
		}
	}()
}

// dispatchPasswordResetEmail sends the reset link in the background with the
// same fire-and-forget contract as dispatchVerificationEmail.
func (service *Service) dispatchPasswordResetEmail(ctx context.Context, email string, artifact *VerificationCode) {
	link := fmt.Sprintf("%s/reset-password?token=%s", service.baseURL, artifact.Token)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if err := service.mailer.SendPasswordResetEmail(sendCtx, email, link); err != nil {
			service.logger.ErrorContext(sendCtx, "password_reset_email_failed", slog.Any("error", err))
		}
	}()
}

// # Email Verification

/*
VerifyEmail confirms ownership of a member's email address.

Description: Resolves the artifact by its link token, cross-checks the short
code and expiry, flips the user's email-verified flag, and consumes the
artifact. Consumption is the concurrency gate: of two concurrent uses of the
same artifact only one can win the delete, and the loser observes NotFound.

Parameters:
  - ctx: context.Context
  - token: string (long value from the link)
  - shortCode: string (six digits typed by the member)

Returns:
  - error: NotFound (absent or consumed), BadRequest (wrong intent),
    Unauthorized (code mismatch or expired), or storage failures
*/
func (service *Service) VerifyEmail(ctx context.Context, token, shortCode string) error {

	artifact, err := service.codes.FindByToken(ctx, token)
	if err != nil {
		return err
	}

	if artifact.Intent != IntentVerifyEmail {
		return apperr.BadRequest("Verification code was issued for a different purpose")
	}
	if artifact.Code != shortCode {
		return apperr.Unauthorized("Invalid verification code")
	}
	if artifact.Expired(time.Now()) {
		return apperr.Unauthorized("Invalid verification code")
	}

	return service.tx.WithinTx(ctx, func(ctx context.Context) error {

		// Single-use: winning the delete is the permission to proceed
		won, err := service.codes.Consume(ctx, artifact.ID)
		if err != nil {
			return fmt.Errorf("auth_service_consume_code_failed: %w", err)
		}
		if !won {
			return apperr.NotFound("Verification code")
		}

		if err := service.users.MarkEmailVerified(ctx, artifact.UserID); err != nil {
			return fmt.Errorf("auth_service_mark_verified_failed: %w", err)
		}

		return nil
	})
}

/*
ResendVerification issues a fresh email-verification artifact on demand.

Description: Quietly does nothing when the email is unknown or the account
is already verified, so the endpoint cannot be used to probe for accounts.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: Storage failures only; absence is never an error
*/
func (service *Service) ResendVerification(ctx context.Context, email string) error {

	user, err := service.users.FindByEmail(ctx, email)
	if err != nil || user.EmailVerified {
		// Swallowed silently to avoid leaking account existence
		return nil
	}

	var artifact *VerificationCode
	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := service.issueVerificationCode(ctx, user.ID, IntentVerifyEmail)
		if err != nil {
			return err
		}
		artifact = created
		return nil
	})
	if err != nil {
		return err
	}

	service.dispatchVerificationEmail(ctx, user.Email, artifact)
	return nil
}

// # Password Recovery

/*
ForgotPassword initiates the password recovery flow.

Description: When the email belongs to a member with a credentials account,
a fresh forgot-password artifact supersedes any prior one and a reset link is
emailed. Unknown emails and federated-only members get the same
success-shaped no-op.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: Storage failures only; absence is never an error
*/
func (service *Service) ForgotPassword(ctx context.Context, email string) error {

	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		return nil
	}

	// Members whose only identity is federated have no password to reset
	if _, err := service.accounts.FindByUserAndProvider(ctx, user.ID, ProviderCredentials); err != nil {
		return nil
	}

	var artifact *VerificationCode
	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := service.issueVerificationCode(ctx, user.ID, IntentForgotPassword)
		if err != nil {
			return err
		}
		artifact = created
		return nil
	})
	if err != nil {
		return err
	}

	service.dispatchPasswordResetEmail(ctx, user.Email, artifact)
	return nil
}

/*
ResetPassword completes the password recovery flow.

Description: Validates the artifact (forgot-password intent, unexpired),
re-hashes the new password, overwrites the credentials account's hash, and
consumes the artifact.

Parameters:
  - ctx: context.Context
  - token: string (long value from the reset link)
  - newPassword: string

Returns:
  - error: NotFound (absent/consumed artifact or no credentials account),
    BadRequest (intent or expiry mismatch), or storage failures
*/
func (service *Service) ResetPassword(ctx context.Context, token, newPassword string) error {

	artifact, err := service.codes.FindByToken(ctx, token)
	if err != nil {
		return err
	}

	// Unlike email confirmation, these are request-shape problems: the caller
	// followed a link of the wrong kind or waited too long.
	if artifact.Intent != IntentForgotPassword {
		return apperr.BadRequest("Reset token was issued for a different purpose")
	}
	if artifact.Expired(time.Now()) {
		return apperr.BadRequest("Reset token has expired")
	}

	account, err := service.accounts.FindByUserAndProvider(ctx, artifact.UserID, ProviderCredentials)
	if err != nil {
		return err
	}

	passwordHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_hash_failed: %w", err)
	}

	return service.tx.WithinTx(ctx, func(ctx context.Context) error {

		won, err := service.codes.Consume(ctx, artifact.ID)
		if err != nil {
			return fmt.Errorf("auth_service_consume_code_failed: %w", err)
		}
		if !won {
			return apperr.NotFound("Verification code")
		}

		if err := service.accounts.UpdatePasswordHash(ctx, account.ID, passwordHash); err != nil {
			return fmt.Errorf("auth_service_reset_update_failed: %w", err)
		}

		return nil
	})
}
