// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/dberr"
	"github.com/carelinkhq/carelink/internal/platform/sec"
	"github.com/carelinkhq/carelink/pkg/pagination"
	"github.com/carelinkhq/carelink/pkg/uuid"
)

// # Service Definition

// Service orchestrates the identity and session flows.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, token
// minting, or the anti-enumeration behavior must be reviewed by the security
// team.
type Service struct {
	users    UserStore
	accounts AccountStore
	roles    RoleStore
	sessions SessionStore
	codes    VerificationCodeStore
	states   StateCache

	mailer    EmailSender
	providers map[string]ProviderGateway
	tokens    TokenProvider
	hasher    PasswordHasher
	tx        TxRunner

	baseURL string
	logger  *slog.Logger
}

// Deps bundles the collaborators required to construct a [Service].
type Deps struct {
	Users    UserStore
	Accounts AccountStore
	Roles    RoleStore
	Sessions SessionStore
	Codes    VerificationCodeStore
	States   StateCache

	Mailer    EmailSender
	Providers map[string]ProviderGateway
	Tokens    TokenProvider
	Hasher    PasswordHasher
	Tx        TxRunner

	BaseURL string
	Logger  *slog.Logger
}

// NewService constructs a new [Service] with its full dependency set.
func NewService(deps Deps) *Service {
	if deps.Providers == nil {
		deps.Providers = map[string]ProviderGateway{}
	}

	return &Service{
		users:     deps.Users,
		accounts:  deps.Accounts,
		roles:     deps.Roles,
		sessions:  deps.Sessions,
		codes:     deps.Codes,
		states:    deps.States,
		mailer:    deps.Mailer,
		providers: deps.Providers,
		tokens:    deps.Tokens,
		hasher:    deps.Hasher,
		tx:        deps.Tx,
		baseURL:   deps.BaseURL,
		logger:    deps.Logger,
	}
}

// # Sign-Up Flow

// SignUpInput holds the data required to enroll a new member.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Roles     []string
}

/*
SignUp validates, hashes, and persists a brand-new member with a credentials
account.

Description: Creates the User, its password-bearing Account, the requested
role memberships, and a fresh email-verification artifact, all inside one
transactional scope. The verification email is dispatched after commit.

Parameters:
  - ctx: context.Context
  - input: SignUpInput

Returns:
  - *User: Created entity
  - error: Conflict (if the email is taken) or storage failures
*/
func (service *Service) SignUp(ctx context.Context, input SignUpInput) (*User, error) {

	// Reject duplicate emails up front. This check is an optimization: the
	// unique constraint below remains the authority under concurrency.
	if _, err := service.users.FindByEmail(ctx, input.Email); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Hash before opening the transaction; Argon2id is deliberately slow and
	// must not hold a database connection while it runs.
	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	now := time.Now()
	user := &User{
		ID:            uuid.New(),
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Email:         input.Email,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var artifact *VerificationCode

	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {

		// 1. Persist the identity anchor. A concurrent sign-up with the same
		// email loses here on the unique constraint.
		if err := service.users.Create(ctx, user); err != nil {
			if dberr.IsUniqueViolation(err) {
				return apperr.Conflict("Email is already registered")
			}
			return fmt.Errorf("auth_service_create_user_failed: %w", err)
		}

		// 2. Bind the password method to the new user
		account := &Account{
			ID:                uuid.New(),
			UserID:            user.ID,
			Provider:          ProviderCredentials,
			ProviderAccountID: CredentialsAccountID,
			PasswordHash:      passwordHash,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := service.accounts.Create(ctx, account); err != nil {
			return fmt.Errorf("auth_service_create_account_failed: %w", err)
		}

		// 3. Grant the requested roles. Unknown names are skipped; the
		// transport layer validates them before calling in.
		if err := service.grantRoles(ctx, user.ID, input.Roles); err != nil {
			return err
		}

		// 4. Issue the email-verification artifact
		created, err := service.issueVerificationCode(ctx, user.ID, IntentVerifyEmail)
		if err != nil {
			return err
		}
		artifact = created

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Dispatch after commit so an email can never reference rolled-back state.
	service.dispatchVerificationEmail(ctx, user.Email, artifact)

	return user, nil
}

// grantRoles resolves each requested role name and records the membership.
// Granting an already-held role is idempotent at the store layer.
func (service *Service) grantRoles(ctx context.Context, userID string, names []string) error {
	for _, name := range names {
		role, err := service.roles.FindByName(ctx, name)
		if err != nil {
			// Unknown role names are silently skipped
			continue
		}
		if err := service.roles.AddMembership(ctx, userID, role.ID); err != nil {
			return fmt.Errorf("auth_service_grant_role_failed: %w", err)
		}
	}
	return nil
}

// # Sign-In Flow

// SignInInput defines credentials for an authentication attempt.
type SignInInput struct {
	Email    string
	Password string
}

// TokenPair holds the signed credentials of an established session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

/*
SignIn validates member credentials and establishes a session.

Description: Resolves the user by email, verifies the password against the
credentials account's Argon2id hash, creates a Session, and mints an
access/refresh token pair.

Parameters:
  - ctx: context.Context
  - input: SignInInput

Returns:
  - *TokenPair: Transport-ready session credentials
  - error: Unauthorized or internal failures
*/
func (service *Service) SignIn(ctx context.Context, input SignInInput) (*TokenPair, error) {

	// Every credential failure below returns the identical generic error so
	// a caller cannot distinguish "no such user" from "wrong password".
	user, err := service.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, errInvalidCredentials()
	}

	account, err := service.accounts.FindByUserAndProvider(ctx, user.ID, ProviderCredentials)
	if err != nil || account.PasswordHash == "" {
		// The member exists but only holds a federated identity
		return nil, errInvalidCredentials()
	}

	match, err := service.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil || !match {
		return nil, errInvalidCredentials()
	}

	return service.establishSession(ctx, user)
}

// errInvalidCredentials is the single generic response for all credential
// failures (anti-enumeration).
func errInvalidCredentials() *apperr.AppError {
	return apperr.Unauthorized("Incorrect email or password")
}

// establishSession creates a Session for the user and mints the token pair.
// Shared by credential sign-in and the OAuth callback.
func (service *Service) establishSession(ctx context.Context, user *User) (*TokenPair, error) {

	roles, err := service.roles.NamesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_resolve_roles_failed: %w", err)
	}

	session := &Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(SessionLifetime),
		CreatedAt: time.Now(),
	}
	if err := service.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("auth_service_create_session_failed: %w", err)
	}

	return service.mintPair(user, session.ID, roles)
}

// mintPair signs an access token (with role claims) and a refresh token
// (identity and session only) bound to the same session.
func (service *Service) mintPair(user *User, sessionID string, roles []string) (*TokenPair, error) {
	accessToken, err := service.tokens.MintAccessToken(user.ID, sessionID, roles, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_mint_access_failed: %w", err)
	}

	refreshToken, err := service.tokens.MintRefreshToken(user.ID, sessionID, RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_mint_refresh_failed: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// # Session Management

/*
Refresh renews a session from a refresh token.

Description: Decodes the token, confirms its Session still exists (the
session row is the source of truth for token validity), pushes the session
expiry forward, re-resolves current role memberships, and mints a fresh pair
bound to the same session.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - *TokenPair: Fresh credentials
  - error: Unauthorized (bad token), NotFound (session revoked), or storage failures
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {

	// Fail closed on every decode failure: bad signature, expiry, or an
	// access token presented where a refresh token is expected.
	claims, err := service.tokens.Decode(refreshToken, sec.TokenTypeRefresh)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// Extending is also the existence check: a deleted session (sign-out or
	// expiry sweep) surfaces as NotFound here even though the token's own
	// signature is still valid.
	if err := service.sessions.Extend(ctx, claims.SessionID, time.Now().Add(SessionLifetime)); err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(ctx, claims.UserID())
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// Roles are re-resolved so membership changes since the original sign-in
	// are reflected in the new access token.
	roles, err := service.roles.NamesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_resolve_roles_failed: %w", err)
	}

	return service.mintPair(user, claims.SessionID, roles)
}

/*
SignOut deletes the caller's session, invalidating every token bound to it.

Description: The session id comes from the caller's authenticated claims,
never from the request body. Deleting an absent session is not an error.

Parameters:
  - ctx: context.Context
  - sessionID: string

Returns:
  - error: Storage failures only
*/
func (service *Service) SignOut(ctx context.Context, sessionID string) error {
	if err := service.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("auth_service_sign_out_failed: %w", err)
	}
	return nil
}

// SweepExpiredSessions removes sessions past their expiry. Run periodically
// by the server's background loop.
func (service *Service) SweepExpiredSessions(ctx context.Context) error {
	removed, err := service.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("auth_service_sweep_failed: %w", err)
	}
	if removed > 0 {
		service.logger.InfoContext(ctx, "expired_sessions_swept", slog.Int64("removed", removed))
	}
	return nil
}

// # Account Queries

// CurrentUser returns the profile of the authenticated member.
func (service *Service) CurrentUser(ctx context.Context, userID string) (*User, error) {
	return service.users.FindByID(ctx, userID)
}

// ListUsers returns one page of members with pagination metadata. Reserved
// for administrative callers; the transport layer enforces the role check.
func (service *Service) ListUsers(ctx context.Context, params pagination.Params) ([]*User, pagination.Meta, error) {
	users, total, err := service.users.List(ctx, params)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("auth_service_list_users_failed: %w", err)
	}
	return users, pagination.NewMeta(params.Page, params.Limit, total), nil
}
