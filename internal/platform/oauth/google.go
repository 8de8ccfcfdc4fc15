// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

/*
Package oauth wraps the external identity providers used for federated
sign-in.

Each provider is an adapter exposing the same two-step shape: build an
authorization URL carrying an opaque CSRF state, then resolve the returned
code into a verified profile. The auth service never sees provider-specific
wire formats.
*/
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Provider failure classes. The handler maps denial to 401 and transport
// failure to 503; no provider response detail leaks to the client.
var (
	ErrProviderDenied      = errors.New("oauth: provider rejected the authorization code")
	ErrProviderUnreachable = errors.New("oauth: provider unreachable")
	ErrNoEmail             = errors.New("oauth: provider returned no email address")
)

// Profile is the provider-agnostic identity returned by a completed exchange.
type Profile struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	FirstName      string
	LastName       string

	// Provider-issued credentials, persisted alongside the linked identity so
	// the platform can call provider APIs on the member's behalf later.
	AccessToken    string
	RefreshToken   string
	IDToken        string
	TokenExpiresAt time.Time
}

// GoogleGateway performs the authorization-code exchange against Google.
type GoogleGateway struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewGoogleGateway builds a gateway from client credentials. The redirect URL
// must match the callback route registered in the Google console.
func NewGoogleGateway(clientID, clientSecret, redirectURL string, scopes []string) *GoogleGateway {
	if len(scopes) == 0 {
		scopes = []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		}
	}

	return &GoogleGateway{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL builds the Google authorization URL carrying the CSRF state.
func (gateway *GoogleGateway) AuthCodeURL(state string) string {
	return gateway.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ResolveProfile exchanges the authorization code and fetches the profile of
// the Google account that approved it.
func (gateway *GoogleGateway) ResolveProfile(ctx context.Context, code string) (*Profile, error) {

	// 1. Exchange the single-use code for an access token
	token, err := gateway.conf.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// Google answered but rejected the code (expired, replayed, revoked)
			return nil, ErrProviderDenied
		}
		return nil, errors.Join(ErrProviderUnreachable, err)
	}

	// 2. Fetch the userinfo document with the fresh access token
	profile, err := gateway.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, ErrNoEmail
	}

	// 3. Attach the provider credentials for persistence
	profile.AccessToken = token.AccessToken
	profile.RefreshToken = token.RefreshToken
	profile.TokenExpiresAt = token.Expiry
	if idToken, ok := token.Extra("id_token").(string); ok {
		profile.IDToken = idToken
	}

	return profile, nil
}

func (gateway *GoogleGateway) fetchUserInfo(ctx context.Context, accessToken string) (*Profile, error) {

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	response, err := gateway.httpClient.Do(request)
	if err != nil {
		return nil, errors.Join(ErrProviderUnreachable, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrProviderUnreachable, fmt.Errorf("google userinfo returned status %d", response.StatusCode))
	}

	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, errors.Join(ErrProviderUnreachable, err)
	}

	return &Profile{
		ProviderUserID: payload.ID,
		Email:          payload.Email,
		EmailVerified:  payload.VerifiedEmail,
		FirstName:      payload.GivenName,
		LastName:       payload.FamilyName,
	}, nil
}
