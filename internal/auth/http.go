// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

/*
HTTP delivery layer for the identity core.

The handler acts as a thin mediation layer between the web and the domain
service:
  - Protocol: Standard RESTful JSON interface.
  - Security: Handles refresh-token cookie injection and role-gated routes.
  - Verification: Enforces strict input validation before calling [Service].

This layer is strictly responsible for transport concerns (status codes,
headers, cookies, JSON).
*/
package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carelinkhq/carelink/internal/platform/apperr"
	"github.com/carelinkhq/carelink/internal/platform/constants"
	"github.com/carelinkhq/carelink/internal/platform/middleware"
	requestutil "github.com/carelinkhq/carelink/internal/platform/request"
	"github.com/carelinkhq/carelink/internal/platform/respond"
	"github.com/carelinkhq/carelink/internal/platform/sec"
	"github.com/carelinkhq/carelink/internal/platform/validate"
	"github.com/carelinkhq/carelink/pkg/pagination"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] with the authentication endpoints.
//
// # Endpoints
//   - POST /sign-up              : Creates a new member account.
//   - POST /sign-in              : Authenticates and returns a token pair.
//   - POST /refresh              : Renews the session from a refresh token.
//   - POST /sign-out             : Deletes the caller's session.
//   - POST /verify-email         : Confirms email ownership.
//   - POST /resend-verification  : Re-issues the verification artifact.
//   - POST /forgot-password      : Starts password recovery.
//   - POST /reset-password       : Completes password recovery.
//   - GET  /oauth/{provider}          : Starts an OAuth round-trip.
//   - GET  /oauth/{provider}/callback : Completes an OAuth round-trip.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/sign-up", handler.signUp)
	router.Post("/sign-in", handler.signIn)
	router.Post("/refresh", handler.refresh)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/resend-verification", handler.resendVerification)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)
	router.Get("/oauth/{provider}", handler.oauthInitiate)
	router.Get("/oauth/{provider}/callback", handler.oauthCallback)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())
		r.Post("/sign-out", handler.signOut)
	})

	return router
}

// UserRoutes returns a [chi.Router] with the member profile endpoints.
//
// # Endpoints
//   - GET /me : The authenticated member's own profile.
//   - GET /   : Paginated member listing (admin only).
func (handler *Handler) UserRoutes() chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())
		r.Get("/me", handler.currentUser)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Get("/", handler.listUsers)
	})

	return router
}

// # Request Payloads

type signUpRequest struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

type emailOnlyRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// # Account Lifecycle

/*
signUp handles the creation of a new member account.

POST /api/auth/sign-up

Request:
  - Body: signUpRequest (Email, Password, FirstName, LastName, Roles)

Response:
  - 201: User: Created member profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 404: ErrNotFound: A requested role does not exist
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) signUp(writer http.ResponseWriter, request *http.Request) {
	var input signUpRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		Password(FieldPassword, input.Password).
		Required(FieldFirstName, input.FirstName).
		MaxLen(FieldFirstName, input.FirstName, 100).
		MaxLen(FieldLastName, input.LastName, 100)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Unknown role names fail here, before any row is written
	for _, role := range input.Roles {
		if !sec.IsKnownRole(role) {
			respond.Error(writer, request, apperr.NotFound("Role"))
			return
		}
	}

	user, err := handler.authService.SignUp(request.Context(), SignUpInput{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Roles:     input.Roles,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
signIn authenticates a member and establishes a session.

POST /api/auth/sign-in

Request:
  - Body: signInRequest (Email, Password)

Response:
  - 200: TokenPair: Access token, user profile, refresh cookie
  - 401: ErrUnauthorized: Incorrect email or password
*/
func (handler *Handler) signIn(writer http.ResponseWriter, request *http.Request) {
	var input signInRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.authService.SignIn(request.Context(), SignInInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, pair)
}

// # Session Lifecycle

/*
refresh renews the session from a refresh token.

POST /api/auth/refresh

Description: Reads the refresh token from the scoped cookie, falling back to
the JSON body for non-browser clients, and issues a fresh token pair bound to
the same session.

Response:
  - 200: TokenPair: Fresh credentials
  - 401: ErrUnauthorized: Missing, malformed, or expired refresh token
  - 404: ErrNotFound: Session was signed out or swept
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken := ""

	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var input refreshRequest
		if err := requestutil.DecodeJSON(request, &input); err == nil {
			refreshToken = input.RefreshToken
		}
	}
	if refreshToken == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	pair, err := handler.authService.Refresh(request.Context(), refreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, pair)
}

/*
signOut deletes the caller's session.

POST /api/auth/sign-out

Description: The session id is taken from the authenticated access token,
never from the request body. The refresh cookie is cleared either way.

Response:
  - 200: Message: Session terminated
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) signOut(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SignOut(request.Context(), claims.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearRefreshCookie(writer)

	respond.OK(writer, map[string]string{
		FieldMessage: "Signed out successfully",
	})
}

// writeSession sets the scoped refresh cookie and writes the token payload.
func (handler *Handler) writeSession(writer http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    pair.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  time.Now().Add(RefreshTokenTTL),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.OK(writer, map[string]any{
		FieldAccessToken: pair.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int64(AccessTokenTTL / time.Second),
		FieldUser:        pair.User,
	})
}

func clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// # Email Verification

/*
verifyEmail confirms a member's email ownership.

POST /api/auth/verify-email

Request:
  - Body: verifyEmailRequest (Token, Code)

Response:
  - 200: Message: Email verified
  - 400: ErrBadRequest: Artifact issued for a different purpose
  - 401: ErrUnauthorized: Code mismatch or artifact expired
  - 404: ErrNotFound: Unknown or already-consumed artifact
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token)
	validator.Required(FieldCode, input.Code)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.VerifyEmail(request.Context(), input.Token, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Email verified successfully",
	})
}

/*
resendVerification re-issues the email-verification artifact.

POST /api/auth/resend-verification

Response:
  - 200: Message: Always, whether or not the email maps to an account
*/
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	var input emailOnlyRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResendVerification(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email needs verification, a new code has been sent.",
	})
}

// # Password Recovery

/*
forgotPassword initiates the password recovery flow.

POST /api/auth/forgot-password

Response:
  - 200: Message: Always, whether or not the email maps to an account
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailOnlyRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ForgotPassword(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a reset link has been sent.",
	})
}

/*
resetPassword completes the password recovery flow.

POST /api/auth/reset-password

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Message: Password updated
  - 400: ErrBadRequest: Wrong artifact kind, expired token, or weak password
  - 404: ErrNotFound: Unknown or already-consumed artifact
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password).
		Password(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password updated successfully",
	})
}

// # OAuth Federation

/*
oauthInitiate starts a federation round-trip.

GET /api/auth/oauth/{provider}?role=careseeker

Response:
  - 200: URL: Provider authorization URL to redirect the member to
  - 400: ErrBadRequest: Unsupported provider or unknown role
*/
func (handler *Handler) oauthInitiate(writer http.ResponseWriter, request *http.Request) {
	provider := requestutil.Param(request, FieldProvider)
	role := request.URL.Query().Get(FieldRole)

	url, err := handler.authService.OAuthInitiate(request.Context(), provider, role)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldURL: url,
	})
}

/*
oauthCallback completes a federation round-trip.

GET /api/auth/oauth/{provider}/callback?state=...&code=...

Response:
  - 200: TokenPair: Session credentials for the resolved member
  - 400: ErrBadRequest: Invalid or expired state
  - 401: ErrUnauthorized: Provider rejected the authorization code
  - 503: ErrServiceUnavailable: Provider unreachable
*/
func (handler *Handler) oauthCallback(writer http.ResponseWriter, request *http.Request) {
	provider := requestutil.Param(request, FieldProvider)
	state := request.URL.Query().Get(FieldState)
	code := request.URL.Query().Get(FieldCode)

	validator := &validate.Validator{}
	validator.Required(FieldState, state)
	validator.Required(FieldCode, code)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.authService.OAuthCallback(request.Context(), provider, state, code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, pair)
}

// # Member Profiles

/*
currentUser returns the authenticated member's own profile.

GET /api/users/me

Response:
  - 200: User: The caller's profile
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Account was deleted since the token was minted
*/
func (handler *Handler) currentUser(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.CurrentUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
listUsers returns one page of members.

GET /api/users?page=1&limit=20

Response:
  - 200: []User: Paginated member listing with metadata
  - 403: ErrForbidden: Caller is not an admin
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	users, meta, err := handler.authService.ListUsers(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, meta)
}
