// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/auth"
	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/oauth"
	"github.com/carelinkhq/carelink/internal/platform/sec"
)

/*
TestService_OAuthInitiate verifies that initiation stores a single-use state
carrying the requested role and embeds the same state in the provider URL.
*/
func TestService_OAuthInitiate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	authURL, err := env.service.OAuthInitiate(ctx, auth.ProviderGoogle, sec.RoleCaregiver)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authURL, "https://provider.example/authorize?state="))

	// The state parameter redeems exactly once and yields the role
	_, state, found := strings.Cut(authURL, "state=")
	require.True(t, found)

	role, exists, err := env.states.Redeem(ctx, state)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, sec.RoleCaregiver, role)

	_, exists, err = env.states.Redeem(ctx, state)
	require.NoError(t, err)
	assert.False(t, exists)
}

/*
TestService_OAuthInitiate_Rejections verifies the up-front validation of
provider and role, before any provider round-trip begins.
*/
func TestService_OAuthInitiate_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 1. Unsupported provider
	_, err := env.service.OAuthInitiate(ctx, "myspace", sec.RoleCaregiver)
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)

	// 2. Unknown role, caught before the member leaves for the provider
	_, err = env.service.OAuthInitiate(ctx, auth.ProviderGoogle, "astronaut")
	require.Error(t, err)
	appError = apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)

	// 3. An empty role is allowed: returning members need none
	_, err = env.service.OAuthInitiate(ctx, auth.ProviderGoogle, "")
	assert.NoError(t, err)
}

/*
TestService_OAuthCallback_NewMember verifies that a first-time federation
creates a verified user with the provider account, the role requested at
initiate time, and an established session.
*/
func TestService_OAuthCallback_NewMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state := env.initiateState(t, sec.RoleCaregiver)

	pair, err := env.service.OAuthCallback(ctx, auth.ProviderGoogle, state, "auth-code")
	require.NoError(t, err)
	require.NotNil(t, pair.User)

	// 1. The provider vouched for the email, so the member starts verified
	assert.Equal(t, "federated@example.com", pair.User.Email)
	assert.True(t, pair.User.EmailVerified)
	assert.Equal(t, "Frida", pair.User.FirstName)

	// 2. The account carries the provider identity and its tokens
	account := env.store.accountFor(pair.User.ID, auth.ProviderGoogle)
	require.NotNil(t, account)
	assert.Equal(t, "google-uid-1", account.ProviderAccountID)
	assert.Equal(t, "provider-access", account.AccessToken)
	assert.Empty(t, account.PasswordHash)

	// 3. The role chosen at initiate time became a membership
	names, err := env.store.NamesForUser(ctx, pair.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{sec.RoleCaregiver}, names)

	// 4. A session backs the pair, exactly like credential sign-in
	assert.Equal(t, 1, env.store.sessionCount())
	claims, err := env.issuer.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.User.ID, claims.UserID())
	assert.Equal(t, []string{sec.RoleCaregiver}, claims.Roles)
}

/*
TestService_OAuthCallback_StateReplay verifies that a state value redeems at
most once; the second callback carrying it is refused.
*/
func TestService_OAuthCallback_StateReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state := env.initiateState(t, sec.RoleCaregiver)

	_, err := env.service.OAuthCallback(ctx, auth.ProviderGoogle, state, "auth-code")
	require.NoError(t, err)

	_, err = env.service.OAuthCallback(ctx, auth.ProviderGoogle, state, "auth-code")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)

	// A state the service never issued is refused the same way
	_, err = env.service.OAuthCallback(ctx, auth.ProviderGoogle, "forged-state", "auth-code")
	require.Error(t, err)
}

/*
TestService_OAuthCallback_ReturningMember verifies that a second federation
with the same provider identity reuses the existing user, refreshes the stored
provider tokens, and syncs renamed profiles.
*/
func TestService_OAuthCallback_ReturningMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.service.OAuthCallback(ctx, auth.ProviderGoogle, env.initiateState(t, sec.RoleCaregiver), "auth-code")
	require.NoError(t, err)

	// The provider reports fresh tokens and a changed name next time
	env.gateway.profile.AccessToken = "rotated-access"
	env.gateway.profile.FirstName = "Frida-Maria"

	second, err := env.service.OAuthCallback(ctx, auth.ProviderGoogle, env.initiateState(t, ""), "auth-code")
	require.NoError(t, err)

	// 1. Same member, no duplicate user or account
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Frida-Maria", second.User.FirstName)

	account := env.store.accountFor(first.User.ID, auth.ProviderGoogle)
	require.NotNil(t, account)
	assert.Equal(t, "rotated-access", account.AccessToken)

	// 2. Roles from the first enrollment persist
	names, err := env.store.NamesForUser(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{sec.RoleCaregiver}, names)

	// 3. Each login is its own session
	assert.Equal(t, 2, env.store.sessionCount())
}

/*
TestService_OAuthCallback_LinksExistingEmail verifies that a federation whose
email matches a credentials member links a provider account to that member and
marks the email verified, rather than creating a duplicate.
*/
func TestService_OAuthCallback_LinksExistingEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existing := env.signUp(t, "federated@example.com", sec.RoleCareseeker)
	require.False(t, existing.EmailVerified)

	pair, err := env.service.OAuthCallback(ctx, auth.ProviderGoogle, env.initiateState(t, sec.RoleCaregiver), "auth-code")
	require.NoError(t, err)

	// 1. Linked, not duplicated
	assert.Equal(t, existing.ID, pair.User.ID)

	// 2. The provider's attestation verified the email
	user, err := env.store.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	// 3. Both authentication methods now coexist
	require.NotNil(t, env.store.accountFor(existing.ID, auth.ProviderCredentials))
	require.NotNil(t, env.store.accountFor(existing.ID, auth.ProviderGoogle))

	// 4. The original roles stand; the callback's requested role is not
	// granted to an already-enrolled member
	names, err := env.store.NamesForUser(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{sec.RoleCareseeker}, names)
}

/*
TestService_OAuthCallback_ProviderFailures verifies the mapping of gateway
failures onto the API error taxonomy.
*/
func TestService_OAuthCallback_ProviderFailures(t *testing.T) {
	cases := []struct {
		name       string
		gatewayErr error
		wantStatus int
	}{
		{name: "exchange_denied", gatewayErr: oauth.ErrProviderDenied, wantStatus: 401},
		{name: "no_email", gatewayErr: oauth.ErrNoEmail, wantStatus: 401},
		{name: "provider_down", gatewayErr: oauth.ErrProviderUnreachable, wantStatus: 503},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.gateway.err = testCase.gatewayErr

			_, err := env.service.OAuthCallback(context.Background(), auth.ProviderGoogle, env.initiateState(t, ""), "auth-code")
			require.Error(t, err)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, testCase.wantStatus, appError.HTTPStatus)
		})
	}
}

/*
TestService_OAuthCallback_UnsupportedProvider verifies that a callback naming
an unconfigured provider is refused before any state is consumed.
*/
func TestService_OAuthCallback_UnsupportedProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state := env.initiateState(t, "")

	_, err := env.service.OAuthCallback(ctx, "myspace", state, "auth-code")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)

	// The state survives for the correctly-named provider
	_, err = env.service.OAuthCallback(ctx, auth.ProviderGoogle, state, "auth-code")
	assert.NoError(t, err)
}
