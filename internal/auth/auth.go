// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

/*
Package auth implements the identity and session core of the CareLink
marketplace.

It defines the domain entities (User, Account, Session, VerificationCode) and
the orchestration logic for credential sign-up and sign-in, email
verification, password recovery, session refresh and sign-out, and federated
OAuth login.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
transport or storage dependencies, and all persistence flows through
capability interfaces defined in store.go so tests can substitute fakes.
*/
package auth

import "time"

// # Domain Entities

// User is the identity anchor of the marketplace. One User may hold several
// Accounts (one per authentication provider) and several role memberships.
type User struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Account is one authentication method bound to a User.
//
// A `credentials` Account always carries a password hash and never provider
// tokens; an OAuth Account is the reverse. At most one Account exists per
// (user, provider) pair.
type Account struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Provider          string     `json:"provider"`
	ProviderAccountID string     `json:"provider_account_id"`
	PasswordHash      string     `json:"-"` // Explicitly omitted from JSON for security.
	AccessToken       string     `json:"-"`
	RefreshToken      string     `json:"-"`
	IDToken           string     `json:"-"`
	TokenExpiresAt    *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Role is a named capability tier. Roles are seeded at startup and are
// effectively immutable at runtime.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session represents one authenticated login instance.
//
// Its existence is the source of truth for token validity: deleting a Session
// invalidates every token referencing it, even tokens whose own signature and
// expiry are still intact.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationCode is a single-use, intent-scoped, expiring artifact used to
// prove control of an email address.
//
// It pairs a short human-enterable value (typed from the email) with a long
// unguessable token (embedded in a link). At most one live code exists per
// (user, intent); creating a new one supersedes the previous. It is consumed
// by deletion, never updated in place.
type VerificationCode struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Intent    string    `json:"intent"`
	Code      string    `json:"-"` // Short value. Only ever delivered by email.
	Token     string    `json:"-"` // Long value. Only ever delivered by email.
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the artifact's validity window has passed.
func (code *VerificationCode) Expired(now time.Time) bool {
	return now.After(code.ExpiresAt)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldRoles       = "roles"
	FieldRole        = "role"
	FieldToken       = "token"
	FieldCode        = "code"
	FieldState       = "state"
	FieldProvider    = "provider"
	FieldAccessToken = "access_token"
	FieldTokenType   = "token_type"
	FieldExpiresIn   = "expires_in"
	FieldUser        = "user"
	FieldMessage     = "message"
	FieldURL         = "url"
)
