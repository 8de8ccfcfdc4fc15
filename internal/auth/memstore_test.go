// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carelinkhq/carelink/internal/auth"
	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/oauth"
	"github.com/carelinkhq/carelink/pkg/pagination"
)

// # In-Memory Stores

// memStore backs every persistence interface of the auth service with maps so
// the orchestration logic can be exercised without a database. All methods
// hold one mutex; the tests that race concurrent consumption rely on it.
type memStore struct {
	mu sync.Mutex

	users       map[string]*auth.User
	accounts    map[string]*auth.Account
	roles       map[string]*auth.Role
	memberships map[string]map[string]bool
	sessions    map[string]*auth.Session
	codes       map[string]*auth.VerificationCode
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]*auth.User{},
		accounts:    map[string]*auth.Account{},
		roles:       map[string]*auth.Role{},
		memberships: map[string]map[string]bool{},
		sessions:    map[string]*auth.Session{},
		codes:       map[string]*auth.VerificationCode{},
	}
}

// uniqueViolation mimics what pgx surfaces when an insert trips a unique
// constraint, so the service's conflict mapping is exercised for real.
func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// # UserStore

func (store *memStore) Create(ctx context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, existing := range store.users {
		if existing.Email == user.Email {
			return uniqueViolation("account_email_key")
		}
	}
	copied := *user
	store.users[user.ID] = &copied
	return nil
}

func (store *memStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	copied := *user
	return &copied, nil
}

func (store *memStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, user := range store.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *memStore) MarkEmailVerified(ctx context.Context, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if user, ok := store.users[userID]; ok {
		user.EmailVerified = true
	}
	return nil
}

func (store *memStore) UpdateName(ctx context.Context, userID, firstName, lastName string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if user, ok := store.users[userID]; ok {
		user.FirstName = firstName
		user.LastName = lastName
	}
	return nil
}

func (store *memStore) List(ctx context.Context, params pagination.Params) ([]*auth.User, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	all := make([]*auth.User, 0, len(store.users))
	for _, user := range store.users {
		copied := *user
		all = append(all, &copied)
	}
	return all, len(all), nil
}

// # AccountStore

func (store *memStore) CreateAccount(ctx context.Context, account *auth.Account) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	copied := *account
	store.accounts[account.ID] = &copied
	return nil
}

func (store *memStore) FindByUserAndProvider(ctx context.Context, userID, provider string) (*auth.Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, account := range store.accounts {
		if account.UserID == userID && account.Provider == provider {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (store *memStore) FindByProviderAccount(ctx context.Context, provider, providerAccountID string) (*auth.Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, account := range store.accounts {
		if account.Provider == provider && account.ProviderAccountID == providerAccountID {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (store *memStore) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if account, ok := store.accounts[accountID]; ok {
		account.PasswordHash = newHash
	}
	return nil
}

func (store *memStore) UpdateProviderTokens(ctx context.Context, accountID, accessToken, refreshToken, idToken string, expiresAt *time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if account, ok := store.accounts[accountID]; ok {
		account.AccessToken = accessToken
		account.RefreshToken = refreshToken
		account.IDToken = idToken
		account.TokenExpiresAt = expiresAt
	}
	return nil
}

// # RoleStore

func (store *memStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	role, ok := store.roles[name]
	if !ok {
		return nil, apperr.NotFound("Role")
	}
	copied := *role
	return &copied, nil
}

func (store *memStore) NamesForUser(ctx context.Context, userID string) ([]string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var names []string
	for _, role := range store.roles {
		if store.memberships[userID][role.ID] {
			names = append(names, role.Name)
		}
	}
	return names, nil
}

func (store *memStore) AddMembership(ctx context.Context, userID, roleID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.memberships[userID] == nil {
		store.memberships[userID] = map[string]bool{}
	}
	store.memberships[userID][roleID] = true
	return nil
}

func (store *memStore) EnsureSeeded(ctx context.Context, names []string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, name := range names {
		if _, ok := store.roles[name]; !ok {
			store.roles[name] = &auth.Role{ID: "role-" + name, Name: name}
		}
	}
	return nil
}

// # SessionStore

func (store *memStore) CreateSession(ctx context.Context, session *auth.Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	copied := *session
	store.sessions[session.ID] = &copied
	return nil
}

func (store *memStore) Extend(ctx context.Context, sessionID string, expiresAt time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	session, ok := store.sessions[sessionID]
	if !ok || time.Now().After(session.ExpiresAt) {
		return apperr.NotFound("Session")
	}
	session.ExpiresAt = expiresAt
	return nil
}

func (store *memStore) Delete(ctx context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.sessions, sessionID)
	return nil
}

func (store *memStore) DeleteExpired(ctx context.Context) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var removed int64
	now := time.Now()
	for id, session := range store.sessions {
		if now.After(session.ExpiresAt) {
			delete(store.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// # VerificationCodeStore

func (store *memStore) Replace(ctx context.Context, code *auth.VerificationCode) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for id, existing := range store.codes {
		if existing.UserID == code.UserID && existing.Intent == code.Intent {
			delete(store.codes, id)
		}
	}
	copied := *code
	store.codes[code.ID] = &copied
	return nil
}

func (store *memStore) FindByToken(ctx context.Context, token string) (*auth.VerificationCode, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, code := range store.codes {
		if code.Token == token {
			copied := *code
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Verification code")
}

func (store *memStore) Consume(ctx context.Context, id string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.codes[id]; !ok {
		return false, nil
	}
	delete(store.codes, id)
	return true, nil
}

// # Test Inspection Helpers

// artifactFor returns the live verification artifact for a (user, intent)
// pair, or nil when none exists.
func (store *memStore) artifactFor(userID, intent string) *auth.VerificationCode {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, code := range store.codes {
		if code.UserID == userID && code.Intent == intent {
			copied := *code
			return &copied
		}
	}
	return nil
}

// expireArtifact backdates an artifact so expiry paths can be exercised.
func (store *memStore) expireArtifact(id string) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if code, ok := store.codes[id]; ok {
		code.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// sessionCount reports how many sessions are currently live.
func (store *memStore) sessionCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.sessions)
}

// accountFor returns the account binding a user to a provider, or nil.
func (store *memStore) accountFor(userID, provider string) *auth.Account {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, account := range store.accounts {
		if account.UserID == userID && account.Provider == provider {
			copied := *account
			return &copied
		}
	}
	return nil
}

// # Interface Adapters

// memStore cannot carry two methods named Create, so thin adapters split the
// colliding store contracts over the same backing maps.

type memUserStore struct{ *memStore }

type memAccountStore struct{ *memStore }

func (store memAccountStore) Create(ctx context.Context, account *auth.Account) error {
	return store.CreateAccount(ctx, account)
}

type memSessionStore struct{ *memStore }

func (store memSessionStore) Create(ctx context.Context, session *auth.Session) error {
	return store.CreateSession(ctx, session)
}

// # Ephemeral Collaborator Fakes

// memStateCache is a map-backed stand-in for the Redis state cache.
type memStateCache struct {
	mu     sync.Mutex
	states map[string]string
}

func newMemStateCache() *memStateCache {
	return &memStateCache{states: map[string]string{}}
}

func (cache *memStateCache) Set(ctx context.Context, state, role string, ttl time.Duration) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.states[state] = role
	return nil
}

func (cache *memStateCache) Redeem(ctx context.Context, state string) (string, bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	role, ok := cache.states[state]
	if !ok {
		return "", false, nil
	}
	delete(cache.states, state)
	return role, true, nil
}

// sentMail records one dispatched message.
type sentMail struct {
	Recipient string
	Code      string
	Link      string
}

// recordingMailer captures outbound email instead of sending it. Dispatch
// happens on a goroutine after commit, so assertions must poll via counts.
type recordingMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
}

func (mailer *recordingMailer) SendVerificationEmail(ctx context.Context, email, code, link string) error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()

	mailer.verifications = append(mailer.verifications, sentMail{Recipient: email, Code: code, Link: link})
	return nil
}

func (mailer *recordingMailer) SendPasswordResetEmail(ctx context.Context, email, link string) error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()

	mailer.resets = append(mailer.resets, sentMail{Recipient: email, Link: link})
	return nil
}

func (mailer *recordingMailer) verificationCount() int {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	return len(mailer.verifications)
}

func (mailer *recordingMailer) resetCount() int {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	return len(mailer.resets)
}

func (mailer *recordingMailer) lastVerification() sentMail {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	return mailer.verifications[len(mailer.verifications)-1]
}

func (mailer *recordingMailer) lastReset() sentMail {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	return mailer.resets[len(mailer.resets)-1]
}

// stubGateway returns a canned provider profile (or a canned error).
type stubGateway struct {
	profile *oauth.Profile
	err     error
}

func (gateway *stubGateway) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (gateway *stubGateway) ResolveProfile(ctx context.Context, code string) (*oauth.Profile, error) {
	if gateway.err != nil {
		return nil, gateway.err
	}
	copied := *gateway.profile
	return &copied, nil
}

// passthroughTx runs the function directly; the memStore needs no
// transactional scoping.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// plainHasher is a transparent stand-in for Argon2id so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Verify(password, encodedHash string) (bool, error) {
	return encodedHash == "hashed:"+password, nil
}
