// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

// PostgreSQL implementations of the auth storage contracts.
//
// # Architecture
//
// Every method resolves its query target through [postgres.QuerierFrom], so
// a store call made inside a transactional scope automatically joins the
// ambient transaction while standalone calls run against the pool.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] values to avoid leaking storage details.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/dberr"
	"github.com/carelinkhq/carelink/internal/platform/postgres"
	"github.com/carelinkhq/carelink/pkg/pagination"
	"github.com/carelinkhq/carelink/pkg/pointer"
	"github.com/carelinkhq/carelink/pkg/uuid"
)

// postgresQuerier resolves the ambient transaction when one is in scope,
// falling back to the pool for standalone reads.
func postgresQuerier(ctx context.Context, pool *pgxpool.Pool) postgres.Querier {
	return postgres.QuerierFrom(ctx, pool)
}

// # User Store

// PostgresUserStore implements [UserStore] using pgx.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates the PostgreSQL implementation of [UserStore].
func NewUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

// Create persists a new user row into the users.account table.
func (store *PostgresUserStore) Create(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, firstname, lastname, email, emailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return err // surfaced as-is so the service can map it to Conflict
		}
		return fmt.Errorf("postgres_user_store_create_failed: %w", err)
	}

	return nil
}

// FindByID retrieves a user by primary key.
func (store *PostgresUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, firstname, lastname, email, emailverified, createdat, updatedat
		FROM users.account
		WHERE id = $1`

	return store.scanOne(ctx, query, id)
}

// FindByEmail retrieves a user by their unique email address.
func (store *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT id, firstname, lastname, email, emailverified, createdat, updatedat
		FROM users.account
		WHERE email = $1`

	return store.scanOne(ctx, query, email)
}

func (store *PostgresUserStore) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	user := &User{}
	err := postgresQuerier(ctx, store.pool).QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.NotFound(err, "User")
	}

	return user, nil
}

// MarkEmailVerified flips the email-verified flag to true.
func (store *PostgresUserStore) MarkEmailVerified(ctx context.Context, userID string) error {
	const query = "UPDATE users.account SET emailverified = TRUE, updatedat = $2 WHERE id = $1"

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_store_mark_verified_failed: %w", err)
	}
	return nil
}

// UpdateName replaces the user's name fields.
func (store *PostgresUserStore) UpdateName(ctx context.Context, userID, firstName, lastName string) error {
	const query = "UPDATE users.account SET firstname = $2, lastname = $3, updatedat = $4 WHERE id = $1"

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query, userID, firstName, lastName, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_store_update_name_failed: %w", err)
	}
	return nil
}

/*
List returns one page of users ordered by creation time (newest first).

Parameters:
  - ctx: context.Context
  - params: pagination.Params

Returns:
  - []*User: The requested page
  - int: Total row count for pagination metadata
  - error: Database failures
*/
func (store *PostgresUserStore) List(ctx context.Context, params pagination.Params) ([]*User, int, error) {
	querier := postgresQuerier(ctx, store.pool)

	var total int
	if err := querier.QueryRow(ctx, "SELECT COUNT(*) FROM users.account").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_store_count_failed: %w", err)
	}

	const query = `
		SELECT id, firstname, lastname, email, emailverified, createdat, updatedat
		FROM users.account
		ORDER BY createdat DESC
		LIMIT $1 OFFSET $2`

	rows, err := querier.Query(ctx, query, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_store_list_failed: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0, params.Limit)
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(
			&user.ID,
			&user.FirstName,
			&user.LastName,
			&user.Email,
			&user.EmailVerified,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_user_store_scan_failed: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_store_rows_failed: %w", err)
	}

	return users, total, nil
}

// # Account Store

// PostgresAccountStore implements [AccountStore] using pgx.
type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates the PostgreSQL implementation of [AccountStore].
func NewAccountStore(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

const accountColumns = `
	id, userid, provider, provideraccountid, passwordhash,
	accesstoken, refreshtoken, idtoken, tokenexpiresat, createdat, updatedat`

// Create persists a new identity row into the users.identity table.
func (store *PostgresAccountStore) Create(ctx context.Context, account *Account) error {
	const query = `
		INSERT INTO users.identity (
			id, userid, provider, provideraccountid, passwordhash,
			accesstoken, refreshtoken, idtoken, tokenexpiresat, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		nullIfEmpty(account.PasswordHash),
		nullIfEmpty(account.AccessToken),
		nullIfEmpty(account.RefreshToken),
		nullIfEmpty(account.IDToken),
		account.TokenExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_account_store_create_failed: %w", err)
	}

	return nil
}

// FindByUserAndProvider returns the account for one (user, provider) pair.
func (store *PostgresAccountStore) FindByUserAndProvider(ctx context.Context, userID, provider string) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users.identity
		WHERE userid = $1 AND provider = $2`

	return store.scanOne(ctx, query, userID, provider)
}

// FindByProviderAccount returns the account matching an external identity.
func (store *PostgresAccountStore) FindByProviderAccount(ctx context.Context, provider, providerAccountID string) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users.identity
		WHERE provider = $1 AND provideraccountid = $2`

	return store.scanOne(ctx, query, provider, providerAccountID)
}

func (store *PostgresAccountStore) scanOne(ctx context.Context, query string, args ...any) (*Account, error) {
	account := &Account{}
	var passwordHash, accessToken, refreshToken, idToken *string

	err := postgresQuerier(ctx, store.pool).QueryRow(ctx, query, args...).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderAccountID,
		&passwordHash,
		&accessToken,
		&refreshToken,
		&idToken,
		&account.TokenExpiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.NotFound(err, "Account")
	}

	account.PasswordHash = pointer.Val(passwordHash)
	account.AccessToken = pointer.Val(accessToken)
	account.RefreshToken = pointer.Val(refreshToken)
	account.IDToken = pointer.Val(idToken)

	return account, nil
}

// UpdatePasswordHash replaces only the stored password hash.
func (store *PostgresAccountStore) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	const query = "UPDATE users.identity SET passwordhash = $2, updatedat = $3 WHERE id = $1"

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query, accountID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_store_update_password_failed: %w", err)
	}
	return nil
}

// UpdateProviderTokens refreshes the stored OAuth credentials.
func (store *PostgresAccountStore) UpdateProviderTokens(ctx context.Context, accountID, accessToken, refreshToken, idToken string, expiresAt *time.Time) error {
	const query = `
		UPDATE users.identity
		SET accesstoken = $2, refreshtoken = $3, idtoken = $4, tokenexpiresat = $5, updatedat = $6
		WHERE id = $1`

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query,
		accountID,
		nullIfEmpty(accessToken),
		nullIfEmpty(refreshToken),
		nullIfEmpty(idToken),
		expiresAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("postgres_account_store_update_tokens_failed: %w", err)
	}
	return nil
}

// # Role Store

// PostgresRoleStore implements [RoleStore] using pgx.
type PostgresRoleStore struct {
	pool *pgxpool.Pool
}

// NewRoleStore creates the PostgreSQL implementation of [RoleStore].
func NewRoleStore(pool *pgxpool.Pool) *PostgresRoleStore {
	return &PostgresRoleStore{pool: pool}
}

// FindByName resolves a role definition by its unique name.
func (store *PostgresRoleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	const query = "SELECT id, name FROM users.role WHERE name = $1"

	role := &Role{}
	err := postgresQuerier(ctx, store.pool).QueryRow(ctx, query, name).Scan(&role.ID, &role.Name)
	if err != nil {
		return nil, dberr.NotFound(err, "Role")
	}

	return role, nil
}

// NamesForUser returns the role names the user is a member of.
func (store *PostgresRoleStore) NamesForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT r.name
		FROM users.usertorole ur
		JOIN users.role r ON r.id = ur.roleid
		WHERE ur.userid = $1
		ORDER BY r.name`

	rows, err := postgresQuerier(ctx, store.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_store_names_failed: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("postgres_role_store_scan_failed: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_role_store_rows_failed: %w", err)
	}

	return names, nil
}

// AddMembership grants a role to a user. The composite primary key plus
// ON CONFLICT DO NOTHING makes repeated grants idempotent.
func (store *PostgresRoleStore) AddMembership(ctx context.Context, userID, roleID string) error {
	const query = `
		INSERT INTO users.usertorole (userid, roleid, createdat)
		VALUES ($1, $2, $3)
		ON CONFLICT (userid, roleid) DO NOTHING`

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query, userID, roleID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_role_store_add_membership_failed: %w", err)
	}
	return nil
}

// EnsureSeeded idempotently inserts the given role definitions.
func (store *PostgresRoleStore) EnsureSeeded(ctx context.Context, names []string) error {
	const query = `
		INSERT INTO users.role (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	querier := postgresQuerier(ctx, store.pool)
	for _, name := range names {
		if _, err := querier.Exec(ctx, query, uuid.New(), name); err != nil {
			return fmt.Errorf("postgres_role_store_seed_failed: %w", err)
		}
	}
	return nil
}

// # Session Store

// PostgresSessionStore implements [SessionStore] using pgx.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates the PostgreSQL implementation of [SessionStore].
func NewSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Create persists a new session row into the users.session table.
func (store *PostgresSessionStore) Create(ctx context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (id, userid, expiresat, createdat)
		VALUES ($1, $2, $3, $4)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query,
		session.ID,
		session.UserID,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_store_create_failed: %w", err)
	}

	return nil
}

// Extend pushes the session expiry forward, failing with NotFound when the
// session is gone. An already-expired row counts as gone.
func (store *PostgresSessionStore) Extend(ctx context.Context, sessionID string, expiresAt time.Time) error {
	const query = "UPDATE users.session SET expiresat = $2 WHERE id = $1 AND expiresat > NOW()"

	tag, err := postgresQuerier(ctx, store.pool).Exec(ctx, query, sessionID, expiresAt)
	if err != nil {
		return fmt.Errorf("postgres_session_store_extend_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Session")
	}

	return nil
}

// Delete removes a session. Absent rows are not an error.
func (store *PostgresSessionStore) Delete(ctx context.Context, sessionID string) error {
	const query = "DELETE FROM users.session WHERE id = $1"

	_, err := postgresQuerier(ctx, store.pool).Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("postgres_session_store_delete_failed: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry.
func (store *PostgresSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	const query = "DELETE FROM users.session WHERE expiresat <= NOW()"

	tag, err := postgresQuerier(ctx, store.pool).Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_delete_expired_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// # Verification Code Store

// PostgresVerificationCodeStore implements [VerificationCodeStore] using pgx.
type PostgresVerificationCodeStore struct {
	pool *pgxpool.Pool
}

// NewVerificationCodeStore creates the PostgreSQL implementation of
// [VerificationCodeStore].
func NewVerificationCodeStore(pool *pgxpool.Pool) *PostgresVerificationCodeStore {
	return &PostgresVerificationCodeStore{pool: pool}
}

// Replace deletes any live artifact for the same (user, intent), then
// inserts the new one. Callers run it inside a transactional scope so both
// statements land atomically.
func (store *PostgresVerificationCodeStore) Replace(ctx context.Context, code *VerificationCode) error {
	querier := postgresQuerier(ctx, store.pool)

	const deleteQuery = "DELETE FROM users.verificationcode WHERE userid = $1 AND intent = $2"
	if _, err := querier.Exec(ctx, deleteQuery, code.UserID, code.Intent); err != nil {
		return fmt.Errorf("postgres_code_store_supersede_failed: %w", err)
	}

	const insertQuery = `
		INSERT INTO users.verificationcode (id, userid, intent, code, token, expiresat, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	_, err := querier.Exec(ctx, insertQuery,
		code.ID,
		code.UserID,
		code.Intent,
		code.Code,
		code.Token,
		code.ExpiresAt,
		code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_code_store_create_failed: %w", err)
	}

	return nil
}

// FindByToken resolves an artifact by its long link token.
func (store *PostgresVerificationCodeStore) FindByToken(ctx context.Context, token string) (*VerificationCode, error) {
	const query = `
		SELECT id, userid, intent, code, token, expiresat, createdat
		FROM users.verificationcode
		WHERE token = $1`

	code := &VerificationCode{}
	err := postgresQuerier(ctx, store.pool).QueryRow(ctx, query, token).Scan(
		&code.ID,
		&code.UserID,
		&code.Intent,
		&code.Code,
		&code.Token,
		&code.ExpiresAt,
		&code.CreatedAt,
	)
	if err != nil {
		return nil, dberr.NotFound(err, "Verification code")
	}

	return code, nil
}

// Consume deletes the artifact. The affected-row count decides the winner
// under concurrent use; the database's delete atomicity is the only lock.
func (store *PostgresVerificationCodeStore) Consume(ctx context.Context, id string) (bool, error) {
	const query = "DELETE FROM users.verificationcode WHERE id = $1"

	tag, err := postgresQuerier(ctx, store.pool).Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("postgres_code_store_consume_failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// # Shared Helpers

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

