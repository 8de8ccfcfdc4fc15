// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/oauth"
	"github.com/carelinkhq/carelink/internal/platform/sec"
	"github.com/carelinkhq/carelink/pkg/pointer"
	"github.com/carelinkhq/carelink/pkg/uuid"
)

// # OAuth Federation
//
// Federation is a state machine over two calls. Initiate issues a single-use
// CSRF state and hands the member to the provider; Callback redeems the
// state, exchanges the authorization code, and resolves the provider profile
// into a local identity.

/*
OAuthInitiate starts a federation round-trip with the named provider.

Description: Validates the provider and requested role, stores a random CSRF
state in the ephemeral cache with the role as its payload, and returns the
provider authorization URL embedding the state.

Parameters:
  - ctx: context.Context
  - provider: string
  - role: string (role granted if the callback creates a new member)

Returns:
  - string: Provider authorization URL
  - error: BadRequest (unsupported provider or unknown role) or cache failures
*/
func (service *Service) OAuthInitiate(ctx context.Context, provider, role string) (string, error) {

	gateway, supported := service.providers[provider]
	if !supported {
		return "", apperr.BadRequest("Unsupported authentication provider")
	}

	// Validate the role now rather than at callback time, so a typo cannot
	// strand the member at the end of the provider round-trip.
	if role != "" {
		if _, err := service.roles.FindByName(ctx, role); err != nil {
			return "", apperr.BadRequest("Unknown role")
		}
	}

	state, err := sec.GenerateSecureToken(OAuthStateLength)
	if err != nil {
		return "", fmt.Errorf("auth_service_generate_state_failed: %w", err)
	}

	if err := service.states.Set(ctx, state, role, OAuthStateTTL); err != nil {
		return "", fmt.Errorf("auth_service_store_state_failed: %w", err)
	}

	return gateway.AuthCodeURL(state), nil
}

/*
OAuthCallback completes a federation round-trip.

Description: Redeems the CSRF state (single redemption), exchanges the
authorization code through the provider gateway, resolves the profile into a
local identity (returning account, email match, or brand-new member), and
establishes a session exactly as credential sign-in does.

Parameters:
  - ctx: context.Context
  - provider: string
  - state: string
  - code: string

Returns:
  - *TokenPair: Session credentials for the resolved member
  - error: BadRequest (bad state/provider), Unauthorized (provider rejected
    the exchange), ServiceUnavailable (provider unreachable), or storage failures
*/
func (service *Service) OAuthCallback(ctx context.Context, provider, state, code string) (*TokenPair, error) {

	gateway, supported := service.providers[provider]
	if !supported {
		return nil, apperr.BadRequest("Unsupported authentication provider")
	}

	// Redeem-and-delete is atomic: of two concurrent callbacks carrying the
	// same state only the first finds the key.
	requestedRole, found, err := service.states.Redeem(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("auth_service_redeem_state_failed: %w", err)
	}
	if !found {
		return nil, apperr.BadRequest("Invalid or expired OAuth state")
	}

	profile, err := gateway.ResolveProfile(ctx, code)
	if err != nil {
		return nil, mapProviderError(err)
	}

	var user *User
	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		resolved, err := service.resolveFederatedIdentity(ctx, provider, requestedRole, profile)
		if err != nil {
			return err
		}
		user = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	return service.establishSession(ctx, user)
}

// mapProviderError translates gateway failures into the API taxonomy without
// leaking provider response detail.
func mapProviderError(err error) error {
	switch {
	case errors.Is(err, oauth.ErrProviderDenied), errors.Is(err, oauth.ErrNoEmail):
		return apperr.Unauthorized("Failed to authenticate with provider")
	case errors.Is(err, oauth.ErrProviderUnreachable):
		return apperr.ServiceUnavailable("Authentication provider is unreachable")
	default:
		return apperr.Internal(err)
	}
}

// resolveFederatedIdentity maps a provider profile onto a local User,
// creating or linking records as needed. Resolution order:
//
//  1. A returning member: an Account already matches (provider, provider
//     account id). Refresh its stored tokens and sync profile names.
//  2. An email match: a User exists with the profile's email but no account
//     for this provider. Link a new Account and mark the email verified,
//     since the provider vouched for it.
//  3. A brand-new member: create User (email-verified), Account, and the
//     role membership requested at initiate time.
func (service *Service) resolveFederatedIdentity(ctx context.Context, provider, requestedRole string, profile *oauth.Profile) (*User, error) {
	now := time.Now()

	// Branch 1: returning member
	account, err := service.accounts.FindByProviderAccount(ctx, provider, profile.ProviderUserID)
	if err == nil {
		var expiresAt *time.Time
		if !profile.TokenExpiresAt.IsZero() {
			expiresAt = pointer.To(profile.TokenExpiresAt)
		}

		if err := service.accounts.UpdateProviderTokens(ctx, account.ID, profile.AccessToken, profile.RefreshToken, profile.IDToken, expiresAt); err != nil {
			return nil, fmt.Errorf("auth_service_update_tokens_failed: %w", err)
		}

		user, err := service.users.FindByID(ctx, account.UserID)
		if err != nil {
			return nil, err
		}

		// Keep the local profile aligned with the provider's
		if profile.FirstName != "" && (user.FirstName != profile.FirstName || user.LastName != profile.LastName) {
			if err := service.users.UpdateName(ctx, user.ID, profile.FirstName, profile.LastName); err != nil {
				return nil, fmt.Errorf("auth_service_sync_profile_failed: %w", err)
			}
			user.FirstName = profile.FirstName
			user.LastName = profile.LastName
		}

		return user, nil
	}

	// Branch 2: existing member, first login through this provider
	if user, err := service.users.FindByEmail(ctx, profile.Email); err == nil {
		if err := service.createFederatedAccount(ctx, user.ID, provider, profile, now); err != nil {
			return nil, err
		}
		if !user.EmailVerified {
			if err := service.users.MarkEmailVerified(ctx, user.ID); err != nil {
				return nil, fmt.Errorf("auth_service_mark_verified_failed: %w", err)
			}
			user.EmailVerified = true
		}
		return user, nil
	}

	// Branch 3: brand-new member
	user := &User{
		ID:            uuid.New(),
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		Email:         profile.Email,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := service.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("auth_service_create_user_failed: %w", err)
	}

	if err := service.createFederatedAccount(ctx, user.ID, provider, profile, now); err != nil {
		return nil, err
	}

	if requestedRole != "" {
		if err := service.grantRoles(ctx, user.ID, []string{requestedRole}); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// createFederatedAccount persists the provider link for a user.
func (service *Service) createFederatedAccount(ctx context.Context, userID, provider string, profile *oauth.Profile, now time.Time) error {
	var expiresAt *time.Time
	if !profile.TokenExpiresAt.IsZero() {
		expiresAt = pointer.To(profile.TokenExpiresAt)
	}

	account := &Account{
		ID:                uuid.New(),
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: profile.ProviderUserID,
		AccessToken:       profile.AccessToken,
		RefreshToken:      profile.RefreshToken,
		IDToken:           profile.IDToken,
		TokenExpiresAt:    expiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := service.accounts.Create(ctx, account); err != nil {
		return fmt.Errorf("auth_service_create_account_failed: %w", err)
	}

	return nil
}
