// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth

import (
	"context"
	"time"

	"github.com/carelinkhq/carelink/internal/platform/oauth"
	"github.com/carelinkhq/carelink/internal/platform/sec"
	"github.com/carelinkhq/carelink/pkg/pagination"
)

// # User Data Access

// UserStore defines the data access contract for user identity anchors.
type UserStore interface {

	/*
		Create persists a brand-new user.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Unique-constraint or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		FindByID returns the user with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the user with the given email address.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		MarkEmailVerified flips the user's email-verified flag to true.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	MarkEmailVerified(context context.Context, userID string) error

	/*
		UpdateName replaces the user's display name fields.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - firstName: string
		  - lastName: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateName(context context.Context, userID, firstName, lastName string) error

	/*
		List returns one page of users ordered by creation time, plus the
		total row count for pagination metadata.

		Parameters:
		  - context: context.Context
		  - params: pagination.Params

		Returns:
		  - []*User: The requested page
		  - int: Total user count
		  - error: Database failures
	*/
	List(context context.Context, params pagination.Params) ([]*User, int, error)
}

// # Account Data Access

// AccountStore defines the data access contract for per-provider identities.
type AccountStore interface {

	/*
		Create persists a new authentication method for a user.

		Parameters:
		  - context: context.Context
		  - account: *Account

		Returns:
		  - error: Unique-constraint or persistence failures
	*/
	Create(context context.Context, account *Account) error

	/*
		FindByUserAndProvider returns the account binding the given user to
		the given provider.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - provider: string

		Returns:
		  - *Account: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByUserAndProvider(context context.Context, userID, provider string) (*Account, error)

	/*
		FindByProviderAccount returns the account matching an external
		provider identity, used to recognize returning OAuth members.

		Parameters:
		  - context: context.Context
		  - provider: string
		  - providerAccountID: string

		Returns:
		  - *Account: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByProviderAccount(context context.Context, provider, providerAccountID string) (*Account, error)

	/*
		UpdatePasswordHash replaces only the account's password hash.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePasswordHash(context context.Context, accountID, newHash string) error

	/*
		UpdateProviderTokens refreshes the stored OAuth credentials after a
		successful provider exchange.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - accessToken: string
		  - refreshToken: string
		  - idToken: string
		  - expiresAt: *time.Time

		Returns:
		  - error: Persistence failures
	*/
	UpdateProviderTokens(context context.Context, accountID, accessToken, refreshToken, idToken string, expiresAt *time.Time) error
}

// # Role Data Access

// RoleStore defines the data access contract for roles and memberships.
type RoleStore interface {

	/*
		FindByName resolves a role definition by its unique name.

		Parameters:
		  - context: context.Context
		  - name: string

		Returns:
		  - *Role: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByName(context context.Context, name string) (*Role, error)

	/*
		NamesForUser returns the role names the user is a member of.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []string: Role names, possibly empty
		  - error: Database failures
	*/
	NamesForUser(context context.Context, userID string) ([]string, error)

	/*
		AddMembership grants a role to a user. Granting an already-held role
		is a no-op, never an error.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - roleID: string

		Returns:
		  - error: Persistence failures
	*/
	AddMembership(context context.Context, userID, roleID string) error

	/*
		EnsureSeeded idempotently inserts the given role definitions. Called
		once at startup; existing rows are left untouched.

		Parameters:
		  - context: context.Context
		  - names: []string

		Returns:
		  - error: Persistence failures
	*/
	EnsureSeeded(context context.Context, names []string) error
}

// # Session Data Access

// SessionStore defines the data access contract for login sessions.
type SessionStore interface {

	/*
		Create persists a new session for an authenticated login.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		Extend pushes the session's expiry forward. It fails with
		apperr.NotFound when the session no longer exists, which is how a
		revoked refresh token is detected.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - expiresAt: time.Time

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	Extend(context context.Context, sessionID string, expiresAt time.Time) error

	/*
		Delete removes a session. Deleting an absent session is not an error
		(sign-out is idempotent).

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, sessionID string) error

	/*
		DeleteExpired physically removes sessions past their expiry.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Number of sessions removed
		  - error: Cleanup failures
	*/
	DeleteExpired(context context.Context) (int64, error)
}

// # Verification Code Data Access

// VerificationCodeStore defines the data access contract for single-use
// verification artifacts.
type VerificationCodeStore interface {

	/*
		Replace inserts a new artifact, first deleting any live artifact for
		the same (user, intent). This upholds the at-most-one-live invariant.

		Parameters:
		  - context: context.Context
		  - code: *VerificationCode

		Returns:
		  - error: Persistence failures
	*/
	Replace(context context.Context, code *VerificationCode) error

	/*
		FindByToken resolves an artifact by its long link token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - *VerificationCode: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByToken(context context.Context, token string) (*VerificationCode, error)

	/*
		Consume deletes the artifact and reports whether this caller won the
		deletion. Under two concurrent uses of the same code exactly one
		caller observes true; the loser must treat the artifact as gone.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - bool: Whether this call performed the deletion
		  - error: Persistence failures
	*/
	Consume(context context.Context, id string) (bool, error)
}

// # Ephemeral State Cache

// StateCache holds single-use OAuth CSRF state for a bounded window.
type StateCache interface {

	/*
		Set stores a state key with the role requested at initiate time.

		Parameters:
		  - context: context.Context
		  - state: string
		  - role: string
		  - ttl: time.Duration

		Returns:
		  - error: Cache failures
	*/
	Set(context context.Context, state, role string, ttl time.Duration) error

	/*
		Redeem atomically fetches and deletes the state key so only one
		redemption can ever succeed.

		Parameters:
		  - context: context.Context
		  - state: string

		Returns:
		  - string: The role stored at initiate time
		  - bool: Whether the state existed
		  - error: Cache failures
	*/
	Redeem(context context.Context, state string) (string, bool, error)
}

// # Outbound Collaborators

// EmailSender delivers the transactional messages of the auth flows.
// Delivery is fire-and-forget: failures are logged, never surfaced.
type EmailSender interface {
	SendVerificationEmail(context context.Context, email, code, link string) error
	SendPasswordResetEmail(context context.Context, email, link string) error
}

// ProviderGateway performs the outbound half of an OAuth federation.
type ProviderGateway interface {

	// AuthCodeURL builds the provider authorization URL embedding the state.
	AuthCodeURL(state string) string

	// ResolveProfile exchanges the authorization code and returns the
	// provider-verified profile with its credentials attached.
	ResolveProfile(context context.Context, code string) (*oauth.Profile, error)
}

// TokenProvider mints and decodes the signed session credentials. It is
// satisfied by [sec.TokenIssuer].
type TokenProvider interface {
	MintAccessToken(userID, sessionID string, roles []string, timeToLive time.Duration) (string, error)
	MintRefreshToken(userID, sessionID string, timeToLive time.Duration) (string, error)
	Decode(tokenString string, expected sec.TokenType) (*sec.AuthClaims, error)
}

// PasswordHasher derives and verifies one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TxRunner executes a function inside one transactional scope; every store
// call made with the scoped context joins the same transaction.
type TxRunner interface {
	WithinTx(context context.Context, fn func(context context.Context) error) error
}
