// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, _, events := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)

		info, err := p.UserInfo(ctx)
		require.NoError(err)
		assert.Equal("alice@example.com", info["sub"])
		assert.Equal("Doe", info["family_name"])

		data, err := p.UserData(ctx)
		require.NoError(err)
		assert.Equal(info, data)
		ev, ok := events.last(EventUserDataChanged)
		require.True(ok)
		assert.Equal(info, ev.Value)
	})
	t.Run("subject-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)
		before, err := p.UserData(ctx)
		require.NoError(err)

		tp.SetUserInfoSubject("bob@example.com")
		_, err = p.UserInfo(ctx)
		require.Error(err)
		assert.ErrorIs(err, ErrUserInfoSubjectMismatch)
		after, err := p.UserData(ctx)
		require.NoError(err)
		assert.Equal(before, after, "the user data is not replaced")
	})
	t.Run("auto-userinfo-mismatch-fails-callback", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetUserInfoSubject("bob@example.com")
		p, _, _ := testNewProvider(t, tp, func(c *Config) { c.AutoUserInfo = true })
		authURL, err := p.AuthorizeURL(ctx)
		require.NoError(err)
		cb, err := p.HandleCodeCallback(ctx, tp.Login(authURL))
		require.Error(err)
		assert.ErrorIs(err, ErrUserInfoSubjectMismatch)
		assert.Equal(StepTokensValidated, cb.FailedAt)
		authenticated, err := p.IsAuthenticated(ctx)
		require.NoError(err)
		assert.False(authenticated, "no tokens are stored")
	})
	t.Run("not-authenticated", func(t *testing.T) {
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		_, err := p.UserInfo(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
	t.Run("revoked-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p, _, _ := testNewProvider(t, tp, nil)
		testLogin(t, tp, p)
		require.NoError(p.RevokeAccessToken(ctx, ""))
		_, err := p.UserInfo(ctx)
		require.Error(err)
		assert.ErrorIs(err, ErrHTTPStatus)
		assert.Equal(1, tp.RequestCount(TestUserInfoPath))
	})
}
