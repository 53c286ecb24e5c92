// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestProvider_AuthorizeURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)

	t.Run("code-flow", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, _, _ := testNewProvider(t, tp, nil)
		authURL, err := p.AuthorizeURL(ctx, WithUILocales(language.French))
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Equal(tp.Addr()+TestAuthorizePath, u.Scheme+"://"+u.Host+u.Path)

		q := u.Query()
		state, err := p.FlowState().AuthStateControl(ctx)
		require.NoError(err)
		nonce, err := p.FlowState().Nonce(ctx)
		require.NoError(err)
		verifier, err := p.FlowState().CodeVerifier(ctx)
		require.NoError(err)
		challenge, err := CodeChallenge(verifier)
		require.NoError(err)

		assert.Equal(tp.ClientID(), q.Get("client_id"))
		assert.Equal("code", q.Get("response_type"))
		assert.Equal(state, q.Get("state"))
		assert.Equal(nonce, q.Get("nonce"))
		assert.Equal(challenge, q.Get("code_challenge"))
		assert.Equal("S256", q.Get("code_challenge_method"))
		assert.Equal("fr", q.Get("ui_locales"))
		assert.Empty(q.Get("prompt"))

		again, err := p.AuthorizeURL(ctx)
		require.NoError(err)
		u2, err := url.Parse(again)
		require.NoError(err)
		assert.Equal(state, u2.Query().Get("state"), "the csrf state is reused")
		assert.NotEqual(nonce, u2.Query().Get("nonce"), "a new nonce is created")
		assert.NotEqual(challenge, u2.Query().Get("code_challenge"), "a new verifier is created")
	})
	t.Run("pkce-disabled", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, _, _ := testNewProvider(t, tp, func(c *Config) { c.DisablePKCE = true })
		authURL, err := p.AuthorizeURL(ctx)
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Empty(u.Query().Get("code_challenge"))
		v, err := p.FlowState().CodeVerifier(ctx)
		require.NoError(err)
		assert.Empty(v)
	})
	t.Run("missing-redirect-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, _, _ := testNewProvider(t, tp, func(c *Config) { c.RedirectURL = "" })
		authURL, err := p.AuthorizeURL(ctx)
		require.NoError(err)
		assert.Empty(authURL)
		state, err := p.FlowState().AuthStateControl(ctx)
		require.NoError(err)
		assert.Empty(state, "the flow state is untouched")
	})
	t.Run("missing-authorize-endpoint", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newTestHTTPClient()
		client.respond("https://op.example.com"+DefaultWellKnownSuffix, func() ([]byte, error) {
			return []byte(`{"issuer":"https://op.example.com"}`), nil
		})
		p, err := NewProvider(testConfig(), testStorage(), WithHTTPClient(client))
		require.NoError(err)
		authURL, err := p.AuthorizeURL(ctx)
		require.NoError(err)
		assert.Empty(authURL)
	})
	t.Run("discovery-failure", func(t *testing.T) {
		tp := StartTestProvider(t)
		tp.SetStatus(TestDiscoveryPath, http.StatusServiceUnavailable)
		p, _, _ := testNewProvider(t, tp, nil)
		_, err := p.AuthorizeURL(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDiscoveryFailed)
	})
	t.Run("silent-renew-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, _, _ := testNewProvider(t, tp, nil)
		renewURL, err := p.SilentRenewURL(ctx)
		require.NoError(err)
		u, err := url.Parse(renewURL)
		require.NoError(err)
		assert.Equal(tp.Config().SilentRenewURL, u.Query().Get("redirect_uri"))
		assert.Equal("none", u.Query().Get("prompt"))

		renewURL, err = p.SilentRenewURL(ctx, WithPrompt("consent"))
		require.NoError(err)
		u, err = url.Parse(renewURL)
		require.NoError(err)
		assert.Equal("consent", u.Query().Get("prompt"))
	})
}

func TestProvider_AuthorizeURLWithPAR(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		authURL, err := p.AuthorizeURLWithPAR(ctx, WithCustomParams(Params{{Key: "audience", Value: "api"}}))
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Contains(u.Query().Get("request_uri"), "urn:ietf:params:oauth:request_uri:")
		assert.Equal(tp.ClientID(), u.Query().Get("client_id"))
		assert.Empty(u.Query().Get("nonce"), "the pushed parameters are not in the url")
		assert.Equal(1, tp.RequestCount(TestPARPath))

		cb, err := p.HandleCodeCallback(ctx, tp.Login(authURL))
		require.NoError(err)
		assert.Equal(StepPersisted, cb.Step)
		assert.Equal("api", tp.LastAuthorizeRequest().Get("audience"))
	})
	t.Run("missing-endpoint", func(t *testing.T) {
		client := newTestHTTPClient()
		p, err := NewProvider(testConfig(), testStorage(), WithHTTPClient(client))
		require.NoError(t, err)
		_, err = p.AuthorizeURLWithPAR(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingPAREndpoint)
	})
	t.Run("rejected", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, func(c *Config) { c.ClientID = "unknown" })
		_, err := p.AuthorizeURLWithPAR(ctx)
		require.Error(err)
		assert.ErrorIs(err, ErrHTTPStatus)
		assert.Equal(1, tp.RequestCount(TestPARPath))
	})
	t.Run("invalid-response", func(t *testing.T) {
		client := newTestHTTPClient()
		client.respond("https://op.example.com"+DefaultWellKnownSuffix, func() ([]byte, error) {
			return []byte(`{"issuer":"https://op.example.com","authorization_endpoint":"https://op.example.com/authorize",` +
				`"pushed_authorization_request_endpoint":"https://op.example.com/par"}`), nil
		})
		client.respond("https://op.example.com/par", func() ([]byte, error) { return []byte(`{"expires_in":60}`), nil })
		p, err := NewProvider(testConfig(), testStorage(), WithHTTPClient(client))
		require.NoError(t, err)
		_, err = p.AuthorizeURLWithPAR(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPARResponse)
	})
}

func TestProvider_Authorize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)

	t.Run("navigator", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var got string
		nav := NavigatorFunc(func(_ context.Context, u string) error {
			got = u
			return nil
		})
		p, _, _ := testNewProvider(t, tp, nil, WithNavigator(nav))
		require.NoError(p.Authorize(ctx))
		assert.Contains(got, tp.Addr()+TestAuthorizePath)
		inProgress, err := p.FlowState().IsCodeFlowInProgress(ctx)
		require.NoError(err)
		assert.True(inProgress)

		_, err = p.HandleCodeCallback(ctx, tp.Login(got))
		require.NoError(err)
		inProgress, err = p.FlowState().IsCodeFlowInProgress(ctx)
		require.NoError(err)
		assert.False(inProgress)
	})
	t.Run("url-handler-with-par", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var got string
		p, _, _ := testNewProvider(t, tp, func(c *Config) { c.UsePushedAuthorisationRequests = true })
		require.NoError(p.Authorize(ctx, WithURLHandler(func(u string) { got = u })))
		assert.Contains(got, "request_uri=")
	})
	t.Run("no-navigator", func(t *testing.T) {
		p, _, _ := testNewProvider(t, tp, nil)
		err := p.Authorize(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingNavigator)
	})
	t.Run("unable-to-build", func(t *testing.T) {
		p, _, _ := testNewProvider(t, tp, func(c *Config) { c.RedirectURL = "" })
		err := p.Authorize(ctx, WithURLHandler(func(string) {}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnableToBuildURL)
	})
	t.Run("navigator-error", func(t *testing.T) {
		boom := errors.New("boom")
		p, _, _ := testNewProvider(t, tp, nil, WithNavigator(NavigatorFunc(func(context.Context, string) error { return boom })))
		err := p.Authorize(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})
}
