// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSessionChecker is a SessionChecker with a fixed answer.
type testSessionChecker struct {
	mu      sync.Mutex
	changed bool
	stopped []string
}

func (c *testSessionChecker) ServerStateChanged(string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *testSessionChecker) Stop(configID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = append(c.stopped, configID)
}

// testNavigator records the urls it was sent to.
type testNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *testNavigator) RedirectTo(_ context.Context, u string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, u)
	return nil
}

func assertLoggedOff(t *testing.T, p *Provider) {
	t.Helper()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	_, ok, err := p.AuthResult(ctx)
	require.NoError(err)
	assert.False(ok)
	data, err := p.UserData(ctx)
	require.NoError(err)
	assert.Nil(data)
	_, ok, err = p.CachedEndpoints(ctx)
	require.NoError(err)
	assert.True(ok, "the endpoints are kept")
}

func TestProvider_EndSessionURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p, _, _ := testNewProvider(t, tp, func(c *Config) {
		c.CustomParamsEndSessionRequest = Params{{Key: "ui_locales", Value: "de"}}
	})
	cb := testLogin(t, tp, p)

	endURL, err := p.EndSessionURL(ctx, WithCustomParams(Params{{Key: "state", Value: "bye"}}))
	require.NoError(err)
	u, err := url.Parse(endURL)
	require.NoError(err)
	assert.Equal(tp.Addr()+TestEndSessionPath, u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(string(cb.AuthResult.IDToken), q.Get("id_token_hint"))
	assert.Equal(tp.Config().PostLogoutRedirectURI, q.Get("post_logout_redirect_uri"))
	assert.Equal("de", q.Get("ui_locales"))
	assert.Equal("bye", q.Get("state"))
}

func TestProvider_Logoff(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("redirect", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		nav := &testNavigator{}
		checker := &testSessionChecker{}
		p, _, events := testNewProvider(t, tp, nil, WithNavigator(nav), WithSessionChecker(checker))
		testLogin(t, tp, p)

		require.NoError(p.Logoff(ctx))
		require.Len(nav.urls, 1)
		assert.Contains(nav.urls[0], tp.Addr()+TestEndSessionPath)
		assert.Equal([]string{"test"}, checker.stopped)
		assertLoggedOff(t, p)
		ev, ok := events.last(EventUserDataChanged)
		require.True(ok)
		assert.Nil(ev.Value)
	})
	t.Run("url-handler", func(t *testing.T) {
		assert := assert.New(t)
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)
		var got string
		require.NoError(t, p.Logoff(ctx, WithURLHandler(func(u string) { got = u })))
		assert.Contains(got, "id_token_hint=")
		assertLoggedOff(t, p)
	})
	t.Run("post", func(t *testing.T) {
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)
		require.NoError(t, p.Logoff(ctx, WithLogoffMethod("post")))
		assert.Equal(t, 1, tp.RequestCount(TestEndSessionPath))
		assertLoggedOff(t, p)
	})
	t.Run("post-failure", func(t *testing.T) {
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)
		tp.SetStatus(TestEndSessionPath, http.StatusInternalServerError)
		err := p.Logoff(ctx, WithLogoffMethod(LogoffPost))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHTTPStatus)
		assert.Equal(t, 1, tp.RequestCount(TestEndSessionPath))
		assertLoggedOff(t, p)
	})
	t.Run("server-session-changed", func(t *testing.T) {
		tp := StartTestProvider(t)
		nav := &testNavigator{}
		p, _, _ := testNewProvider(t, tp, nil, WithNavigator(nav), WithSessionChecker(&testSessionChecker{changed: true}))
		testLogin(t, tp, p)
		require.NoError(t, p.Logoff(ctx))
		assert.Empty(t, nav.urls)
		assertLoggedOff(t, p)
	})
	t.Run("no-navigator", func(t *testing.T) {
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)
		err := p.Logoff(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingNavigator)
		authenticated, err := p.IsAuthenticated(ctx)
		require.NoError(t, err)
		assert.True(t, authenticated, "nothing is cleared")
	})
	t.Run("no-end-session-endpoint", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newTestHTTPClient()
		client.respond("https://op.example.com"+DefaultWellKnownSuffix, func() ([]byte, error) {
			return []byte(`{"issuer":"https://op.example.com","token_endpoint":"https://op.example.com/token"}`), nil
		})
		nav := &testNavigator{}
		p, err := NewProvider(testConfig(), testStorage(), WithHTTPClient(client), WithNavigator(nav))
		require.NoError(err)
		_, err = p.Discover(ctx)
		require.NoError(err)
		require.NoError(p.storeAuthResult(ctx, &AuthResult{AccessToken: "at"}))

		require.NoError(p.Logoff(ctx))
		assert.Empty(nav.urls)
		_, ok, err := p.AuthResult(ctx)
		require.NoError(err)
		assert.True(ok, "nothing happens without an end session url")
	})
}

func TestProvider_Revoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("logoff-and-revoke", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		cb := testLogin(t, tp, p)

		var endURL string
		require.NoError(p.LogoffAndRevokeTokens(ctx, WithURLHandler(func(u string) { endURL = u })))
		assert.True(tp.Revoked(string(cb.AuthResult.RefreshToken)))
		assert.True(tp.Revoked(string(cb.AuthResult.AccessToken)))
		assert.Equal(2, tp.RequestCount(TestRevocationPath))
		assert.NotEmpty(endURL)
		assertLoggedOff(t, p)
	})
	t.Run("revocation-failure-keeps-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)
		tp.SetStatus(TestRevocationPath, http.StatusServiceUnavailable)

		var endURL string
		err := p.LogoffAndRevokeTokens(ctx, WithURLHandler(func(u string) { endURL = u }))
		require.Error(err)
		assert.ErrorIs(err, ErrHTTPStatus)
		assert.Empty(endURL)
		authenticated, err := p.IsAuthenticated(ctx)
		require.NoError(err)
		assert.True(authenticated)
	})
	t.Run("explicit-token", func(t *testing.T) {
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		_, err := p.Discover(ctx)
		require.NoError(t, err)
		require.NoError(t, p.RevokeAccessToken(ctx, "some-token"))
		assert.True(t, tp.Revoked("some-token"))
	})
	t.Run("no-revocation-endpoint", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		client := newTestHTTPClient()
		client.respond("https://op.example.com"+DefaultWellKnownSuffix, func() ([]byte, error) {
			return []byte(`{"issuer":"https://op.example.com","end_session_endpoint":"https://op.example.com/logout"}`), nil
		})
		p, err := NewProvider(testConfig(), testStorage(), WithHTTPClient(client))
		require.NoError(err)
		_, err = p.Discover(ctx)
		require.NoError(err)
		require.NoError(p.storeAuthResult(ctx, &AuthResult{AccessToken: "at"}))

		err = p.RevokeAccessToken(ctx, "")
		require.Error(err)
		assert.ErrorIs(err, ErrMissingRevocationEndpoint)

		var endURL string
		require.NoError(p.LogoffAndRevokeTokens(ctx, WithURLHandler(func(u string) { endURL = u })))
		assert.Equal("https://op.example.com/logout", endURL)
	})
}
