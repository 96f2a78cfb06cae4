// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package auth defines the credential provider boundary for the SDK.
//
// The SDK never issues or refreshes credentials itself; callers supply a
// Credentials implementation (typically backed by an oauth2 token source)
// and the SDK derives authorized HTTP clients and token sources from it.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// OAuthTokenURL is the Google OAuth2 token endpoint used by SDM.
const OAuthTokenURL = "https://www.googleapis.com/oauth2/v4/token"

// OAuthAuthorizeURLFormat is the partner connections authorize URL; the
// single format argument is the SDM device access project id.
const OAuthAuthorizeURLFormat = "https://nestservices.google.com/partnerconnections/%s/auth"

// Scopes required for the SDM API and the event subscription.
var Scopes = []string{
	"https://www.googleapis.com/auth/sdm.service",
	"https://www.googleapis.com/auth/pubsub",
}

// Credentials supplies a valid OAuth2 token on demand. Implementations must
// be safe for concurrent use and should refresh expired tokens internally.
type Credentials interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Static wraps a fixed access token. Intended for tests and short-lived
// tooling; the token is never refreshed.
type Static string

// Token implements Credentials.
func (s Static) Token(_ context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: string(s)}, nil
}

// OAuth adapts an oauth2 config plus a stored token (usually carrying a
// refresh token) into Credentials.
type OAuth struct {
	source oauth2.TokenSource
}

// NewOAuth creates Credentials that refresh through the given config.
func NewOAuth(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) *OAuth {
	return &OAuth{source: cfg.TokenSource(ctx, token)}
}

// Token implements Credentials.
func (o *OAuth) Token(_ context.Context) (*oauth2.Token, error) {
	token, err := o.source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return token, nil
}

// TokenSource adapts Credentials to an oauth2.TokenSource bound to ctx, for
// clients (like the pub/sub client) that take a token source directly.
func TokenSource(ctx context.Context, creds Credentials) oauth2.TokenSource {
	return &credsSource{ctx: ctx, creds: creds}
}

type credsSource struct {
	ctx   context.Context
	creds Credentials
}

func (s *credsSource) Token() (*oauth2.Token, error) {
	return s.creds.Token(s.ctx)
}

// HTTPClient returns an http.Client that attaches bearer tokens from creds
// to every request.
func HTTPClient(ctx context.Context, creds Credentials) *http.Client {
	return oauth2.NewClient(ctx, TokenSource(ctx, creds))
}
