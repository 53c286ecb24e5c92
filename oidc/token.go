// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew is subtracted from a token's expiry when checking it.
const expirySkew = 10 * time.Second

// AuthResult are the tokens received from the token endpoint, or from an
// implicit flow callback.
type AuthResult struct {
	AccessToken  AccessToken
	IDToken      IDToken
	RefreshToken RefreshToken
	TokenType    string
	ExpiresIn    int64
	Scope        string
	SessionState string
	State        string

	// Expiry of the access token, zero when the provider did not send
	// expires_in.
	Expiry time.Time
}

// tokenResponse is the wire form of an AuthResult. It is also the form
// persisted to Storage.
type tokenResponse struct {
	AccessToken  string    `json:"access_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    expiresIn `json:"expires_in,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	SessionState string    `json:"session_state,omitempty"`
	State        string    `json:"state,omitempty"`
}

// expiresIn accepts both a json number and a json string.
type expiresIn int64

func (e *expiresIn) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("expires_in: %w", err)
		}
		n = json.Number(s)
	}
	if n == "" {
		*e = 0
		return nil
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*e = expiresIn(v)
	return nil
}

// parseTokenResponse decodes a token endpoint response.
func parseTokenResponse(b []byte, now time.Time) (*AuthResult, error) {
	var tr tokenResponse
	if err := json.Unmarshal(b, &tr); err != nil {
		return nil, fmt.Errorf("unable to decode token response: %w", err)
	}
	return tr.authResult(now), nil
}

func (tr tokenResponse) authResult(now time.Time) *AuthResult {
	r := &AuthResult{
		AccessToken:  AccessToken(tr.AccessToken),
		IDToken:      IDToken(tr.IDToken),
		RefreshToken: RefreshToken(tr.RefreshToken),
		TokenType:    tr.TokenType,
		ExpiresIn:    int64(tr.ExpiresIn),
		Scope:        tr.Scope,
		SessionState: tr.SessionState,
		State:        tr.State,
	}
	if r.ExpiresIn > 0 {
		r.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return r
}

func (r *AuthResult) response() tokenResponse {
	return tokenResponse{
		AccessToken:  string(r.AccessToken),
		IDToken:      string(r.IDToken),
		RefreshToken: string(r.RefreshToken),
		TokenType:    r.TokenType,
		ExpiresIn:    expiresIn(r.ExpiresIn),
		Scope:        r.Scope,
		SessionState: r.SessionState,
		State:        r.State,
	}
}

// Expired reports whether the access token expired, allowing for a small
// skew. A result without an expiry never expires.
func (r *AuthResult) Expired(now time.Time) bool {
	if r.Expiry.IsZero() {
		return false
	}
	return r.Expiry.Round(0).Before(now.Add(expirySkew))
}

// Token returns the result as an *oauth2.Token. The id_token is available
// as Extra("id_token").
func (r *AuthResult) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  string(r.AccessToken),
		TokenType:    r.TokenType,
		RefreshToken: string(r.RefreshToken),
		Expiry:       r.Expiry,
	}
	if r.IDToken != "" {
		t = t.WithExtra(map[string]interface{}{"id_token": string(r.IDToken)})
	}
	return t
}

// StaticTokenSource returns a TokenSource which always returns the result's
// token, for use with oauth2 aware http clients.
func (r *AuthResult) StaticTokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(r.Token())
}
