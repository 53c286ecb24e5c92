// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// auth0Suffix identifies authorities whose logout endpoint is not
// advertised in discovery.
const auth0Suffix = "auth0.com"

// authorizeRequest is the input of an authorize url or par body.
type authorizeRequest struct {
	redirectURL   string
	nonce         string
	state         string
	codeChallenge string
	prompt        string
	custom        Params
}

// urlBuilder builds request urls and bodies from a config and its endpoints.
// It has no side effects. An empty result means a required value is missing
// and the request cannot be built.
type urlBuilder struct {
	config    *Config
	endpoints *Endpoints
	logger    hclog.Logger
}

func (b urlBuilder) endpoint(get func(*Endpoints) string) string {
	if b.endpoints == nil {
		return ""
	}
	return get(b.endpoints)
}

// canAuthorize reports whether the config has what an authorize request
// needs.
func (b urlBuilder) canAuthorize(redirectURL string) bool {
	c := b.config
	switch {
	case c.ClientID == "":
		b.logger.Debug("cannot build authorize request: missing client id")
		return false
	case c.ResponseType == "":
		b.logger.Debug("cannot build authorize request: missing response type")
		return false
	case c.Scope == "":
		b.logger.Debug("cannot build authorize request: missing scope")
		return false
	case c.IsCodeFlow() && redirectURL == "":
		b.logger.Debug("cannot build authorize request: missing redirect url")
		return false
	}
	return true
}

// authorizeParams returns the authorize parameters in their fixed order:
// client_id, redirect_uri, response_type, scope, nonce, state, the pkce
// challenge, the config's custom params, the dynamic custom params, prompt
// and hd. A prompt replaces a prompt from the custom params in place.
func (b urlBuilder) authorizeParams(existing Params, r authorizeRequest) Params {
	c := b.config
	p := append(Params(nil), existing...)
	p.Set("client_id", c.ClientID)
	p.Add("redirect_uri", r.redirectURL)
	p.Add("response_type", c.ResponseType)
	p.Add("scope", c.Scope)
	p.Add("nonce", r.nonce)
	p.Add("state", r.state)
	if r.codeChallenge != "" {
		p.Add("code_challenge", r.codeChallenge)
		p.Add("code_challenge_method", "S256")
	}
	p = append(p, c.CustomParamsAuthRequest...)
	p = append(p, r.custom...)
	if r.prompt != "" {
		p.Set("prompt", r.prompt)
	}
	if c.HDParam != "" {
		p.Add("hd", c.HDParam)
	}
	return p
}

// authorizeURL returns the authorize url, or "" when it cannot be built.
func (b urlBuilder) authorizeURL(r authorizeRequest) (string, error) {
	const op = "urlBuilder.authorizeURL"
	ep := b.endpoint(func(e *Endpoints) string { return e.AuthorizationEndpoint })
	if ep == "" {
		b.logger.Debug("cannot build authorize url: missing authorization endpoint")
		return "", nil
	}
	base, existing, err := splitURL(ep)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return joinURL(base, b.authorizeParams(existing, r)), nil
}

// parBody returns the pushed authorization request body.
func (b urlBuilder) parBody(r authorizeRequest) string {
	return b.authorizeParams(nil, r).Encode()
}

// parAuthorizeURL returns the authorize url referencing a pushed request.
func (b urlBuilder) parAuthorizeURL(requestURI string) (string, error) {
	const op = "urlBuilder.parAuthorizeURL"
	ep := b.endpoint(func(e *Endpoints) string { return e.AuthorizationEndpoint })
	if ep == "" {
		b.logger.Debug("cannot build authorize url: missing authorization endpoint")
		return "", nil
	}
	base, p, err := splitURL(ep)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	p.Add("request_uri", requestURI)
	p.Set("client_id", b.config.ClientID)
	return joinURL(base, p), nil
}

// codeExchangeBody returns the authorization_code grant body with
// redirect_uri last. The redirect uri is the silent renew url while
// renewing.
func (b urlBuilder) codeExchangeBody(code, codeVerifier string, renew bool, custom Params) (string, error) {
	const op = "urlBuilder.codeExchangeBody"
	c := b.config
	if !c.DisablePKCE && codeVerifier == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingCodeVerifier)
	}
	if c.ClientID == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingClientID)
	}
	redirect := c.redirectTarget(renew)
	if redirect == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingRedirectURL)
	}
	var p Params
	p.Add("grant_type", "authorization_code")
	p.Add("client_id", c.ClientID)
	if !c.DisablePKCE {
		p.Add("code_verifier", codeVerifier)
	}
	p.Add("code", code)
	p = append(p, c.CustomParamsCodeRequest...)
	p = append(p, custom...)
	p.Add("redirect_uri", redirect)
	return p.Encode(), nil
}

// refreshBody returns the refresh_token grant body, or "" without a client
// id.
func (b urlBuilder) refreshBody(refreshToken string, custom Params) string {
	c := b.config
	if c.ClientID == "" {
		b.logger.Debug("cannot build refresh body: missing client id")
		return ""
	}
	var p Params
	p.Add("grant_type", "refresh_token")
	p.Add("client_id", c.ClientID)
	p.Add("refresh_token", refreshToken)
	p = append(p, c.CustomParamsRefreshTokenRequest...)
	p = append(p, custom...)
	return p.Encode()
}

// revocationBody returns the token revocation body, or "" without a client
// id. hint is access_token or refresh_token.
func (b urlBuilder) revocationBody(token, hint string) string {
	c := b.config
	if c.ClientID == "" {
		b.logger.Debug("cannot build revocation body: missing client id")
		return ""
	}
	var p Params
	p.Add("client_id", c.ClientID)
	p.Add("token", token)
	p.Add("token_type_hint", hint)
	return p.Encode()
}

func (b urlBuilder) isAuth0() bool {
	return strings.HasSuffix(strings.TrimSuffix(b.config.Authority, "/"), auth0Suffix)
}

// endSessionURL returns the end session url, or "" when the provider has no
// end session endpoint. The endpoint's own query is kept in front of
// id_token_hint, post_logout_redirect_uri and the custom params.
func (b urlBuilder) endSessionURL(idTokenHint string, custom Params) (string, error) {
	const op = "urlBuilder.endSessionURL"
	c := b.config
	if b.isAuth0() {
		var p Params
		p.Add("client_id", c.ClientID)
		p.Add("returnTo", c.PostLogoutRedirectURI)
		return joinURL(strings.TrimSuffix(c.Authority, "/")+"/v2/logout", p), nil
	}
	ep := b.endpoint(func(e *Endpoints) string { return e.EndSessionEndpoint })
	if ep == "" {
		b.logger.Debug("cannot build end session url: missing end session endpoint")
		return "", nil
	}
	base, p, err := splitURL(ep)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if idTokenHint != "" {
		p.Set("id_token_hint", idTokenHint)
	}
	if c.PostLogoutRedirectURI != "" {
		p.Add("post_logout_redirect_uri", c.PostLogoutRedirectURI)
	}
	p = append(p, c.CustomParamsEndSessionRequest...)
	p = append(p, custom...)
	return joinURL(base, p), nil
}

// endSessionBody returns the body of a POST logoff.
func (b urlBuilder) endSessionBody(idTokenHint string, custom Params) string {
	c := b.config
	var p Params
	p.Add("id_token_hint", idTokenHint)
	p.Add("client_id", c.ClientID)
	p.Add("post_logout_redirect_uri", c.PostLogoutRedirectURI)
	p = append(p, c.CustomParamsEndSessionRequest...)
	p = append(p, custom...)
	return p.Encode()
}
