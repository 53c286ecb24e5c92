// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder(modify func(*Config), eps *Endpoints) urlBuilder {
	c := testConfig()
	c.ApplyDefaults()
	if modify != nil {
		modify(c)
	}
	return urlBuilder{config: c, endpoints: eps, logger: hclog.NewNullLogger()}
}

func Test_urlBuilder_authorizeURL(t *testing.T) {
	t.Parallel()
	eps := &Endpoints{AuthorizationEndpoint: "https://op.example.com/authorize"}
	req := authorizeRequest{
		redirectURL:   "https://app.example.com/callback",
		nonce:         "n",
		state:         "s",
		codeChallenge: "cc",
	}
	tests := []struct {
		name   string
		modify func(*Config)
		eps    *Endpoints
		req    authorizeRequest
		want   string
	}{
		{
			name: "code-flow",
			eps:  eps,
			req:  req,
			want: "https://op.example.com/authorize?client_id=client&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback" +
				"&response_type=code&scope=openid%20email%20profile&nonce=n&state=s&code_challenge=cc&code_challenge_method=S256",
		},
		{
			name: "custom-params-prompt-hd",
			modify: func(c *Config) {
				c.CustomParamsAuthRequest = Params{{Key: "prompt", Value: "login"}, {Key: "audience", Value: "api"}}
				c.HDParam = "example.com"
			},
			eps: eps,
			req: authorizeRequest{
				redirectURL: "https://app.example.com/callback",
				nonce:       "n",
				state:       "s",
				prompt:      "none",
				custom:      Params{{Key: "ui_locales", Value: "de"}},
			},
			want: "https://op.example.com/authorize?client_id=client&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback" +
				"&response_type=code&scope=openid%20email%20profile&nonce=n&state=s" +
				"&prompt=none&audience=api&ui_locales=de&hd=example.com",
		},
		{
			name: "endpoint-query-kept",
			eps:  &Endpoints{AuthorizationEndpoint: "https://op.example.com/authorize?p=b2c_signin"},
			req:  authorizeRequest{redirectURL: "https://app.example.com/callback", nonce: "n", state: "s"},
			want: "https://op.example.com/authorize?p=b2c_signin&client_id=client&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback" +
				"&response_type=code&scope=openid%20email%20profile&nonce=n&state=s",
		},
		{
			name: "implicit",
			modify: func(c *Config) {
				c.ResponseType = ResponseTypeIDTokenToken
				c.Scope = "openid"
			},
			eps: eps,
			req: authorizeRequest{redirectURL: "https://app.example.com/callback", nonce: "n", state: "s"},
			want: "https://op.example.com/authorize?client_id=client&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback" +
				"&response_type=id_token%20token&scope=openid&nonce=n&state=s",
		},
		{name: "no-endpoints", req: req, want: ""},
		{name: "no-authorize-endpoint", eps: &Endpoints{}, req: req, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require := require.New(t)
			got, err := testBuilder(tt.modify, tt.eps).authorizeURL(tt.req)
			require.NoError(err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_urlBuilder_canAuthorize(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.True(testBuilder(nil, nil).canAuthorize("https://app.example.com/callback"))
	assert.False(testBuilder(nil, nil).canAuthorize(""))
	assert.False(testBuilder(func(c *Config) { c.ClientID = "" }, nil).canAuthorize("https://app.example.com/callback"))
	assert.False(testBuilder(func(c *Config) { c.Scope = "" }, nil).canAuthorize("https://app.example.com/callback"))
	assert.False(testBuilder(func(c *Config) { c.ResponseType = "" }, nil).canAuthorize("https://app.example.com/callback"))
	assert.True(testBuilder(func(c *Config) { c.ResponseType = ResponseTypeIDToken }, nil).canAuthorize(""))
}

func Test_urlBuilder_par(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	b := testBuilder(nil, &Endpoints{AuthorizationEndpoint: "https://op.example.com/authorize"})
	body := b.parBody(authorizeRequest{redirectURL: "https://app.example.com/callback", nonce: "n", state: "s"})
	assert.Equal("client_id=client&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback&response_type=code"+
		"&scope=openid%20email%20profile&nonce=n&state=s", body)

	u, err := b.parAuthorizeURL("urn:ietf:params:oauth:request_uri:abc")
	require.NoError(err)
	assert.Equal("https://op.example.com/authorize?request_uri=urn%3Aietf%3Aparams%3Aoauth%3Arequest_uri%3Aabc&client_id=client", u)

	u, err = testBuilder(nil, nil).parAuthorizeURL("x")
	require.NoError(err)
	assert.Empty(u)
}

func Test_urlBuilder_codeExchangeBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		modify    func(*Config)
		verifier  string
		renew     bool
		custom    Params
		want      string
		wantErrIs error
	}{
		{
			name:     "pkce",
			verifier: "v",
			want:     "grant_type=authorization_code&client_id=client&code_verifier=v&code=c&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback",
		},
		{
			name:     "custom-params-before-redirect",
			modify:   func(c *Config) { c.CustomParamsCodeRequest = Params{{Key: "a", Value: "1"}} },
			verifier: "v",
			custom:   Params{{Key: "b", Value: "2"}},
			want:     "grant_type=authorization_code&client_id=client&code_verifier=v&code=c&a=1&b=2&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback",
		},
		{
			name:     "renew",
			modify:   func(c *Config) { c.SilentRenewURL = "https://app.example.com/silent" },
			verifier: "v",
			renew:    true,
			want:     "grant_type=authorization_code&client_id=client&code_verifier=v&code=c&redirect_uri=https%3A%2F%2Fapp.example.com%2Fsilent",
		},
		{
			name:   "pkce-disabled",
			modify: func(c *Config) { c.DisablePKCE = true },
			want:   "grant_type=authorization_code&client_id=client&code=c&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback",
		},
		{name: "missing-verifier", wantErrIs: ErrMissingCodeVerifier},
		{name: "missing-client-id", modify: func(c *Config) { c.ClientID = "" }, verifier: "v", wantErrIs: ErrMissingClientID},
		{name: "missing-renew-url", verifier: "v", renew: true, wantErrIs: ErrMissingRedirectURL},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := testBuilder(tt.modify, nil).codeExchangeBody("c", tt.verifier, tt.renew, tt.custom)
			if tt.wantErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func Test_urlBuilder_refreshAndRevocation(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	b := testBuilder(func(c *Config) { c.CustomParamsRefreshTokenRequest = Params{{Key: "scope", Value: "openid"}} }, nil)
	assert.Equal("grant_type=refresh_token&client_id=client&refresh_token=rt&scope=openid&x=y",
		b.refreshBody("rt", Params{{Key: "x", Value: "y"}}))
	assert.Equal("client_id=client&token=at&token_type_hint=access_token", b.revocationBody("at", tokenTypeHintAccess))

	noClient := testBuilder(func(c *Config) { c.ClientID = "" }, nil)
	assert.Empty(noClient.refreshBody("rt", nil))
	assert.Empty(noClient.revocationBody("at", tokenTypeHintAccess))
}

func Test_urlBuilder_endSession(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		modify func(*Config)
		eps    *Endpoints
		hint   string
		custom Params
		want   string
	}{
		{
			name: "standard",
			modify: func(c *Config) {
				c.PostLogoutRedirectURI = "https://app.example.com/"
				c.CustomParamsEndSessionRequest = Params{{Key: "a", Value: "1"}}
			},
			eps:    &Endpoints{EndSessionEndpoint: "https://op.example.com/logout"},
			hint:   "idt",
			custom: Params{{Key: "b", Value: "2"}},
			want:   "https://op.example.com/logout?id_token_hint=idt&post_logout_redirect_uri=https%3A%2F%2Fapp.example.com%2F&a=1&b=2",
		},
		{
			name: "endpoint-query-first",
			eps:  &Endpoints{EndSessionEndpoint: "https://op.example.com/logout?x=1"},
			hint: "idt",
			want: "https://op.example.com/logout?x=1&id_token_hint=idt",
		},
		{
			name: "no-hint",
			eps:  &Endpoints{EndSessionEndpoint: "https://op.example.com/logout"},
			want: "https://op.example.com/logout",
		},
		{
			name: "auth0",
			modify: func(c *Config) {
				c.Authority = "https://tenant.eu.auth0.com/"
				c.PostLogoutRedirectURI = "https://app.example.com/"
			},
			hint: "idt",
			want: "https://tenant.eu.auth0.com/v2/logout?client_id=client&returnTo=https%3A%2F%2Fapp.example.com%2F",
		},
		{name: "no-endpoint", eps: &Endpoints{}, hint: "idt", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := testBuilder(tt.modify, tt.eps).endSessionURL(tt.hint, tt.custom)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_urlBuilder_endSessionBody(t *testing.T) {
	t.Parallel()
	b := testBuilder(func(c *Config) { c.PostLogoutRedirectURI = "https://app.example.com/" }, nil)
	assert.Equal(t, "id_token_hint=idt&client_id=client&post_logout_redirect_uri=https%3A%2F%2Fapp.example.com%2F&c=d",
		b.endSessionBody("idt", Params{{Key: "c", Value: "d"}}))
}
