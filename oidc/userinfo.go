// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
)

// UserInfo fetches the userinfo claims with the stored access token, stores
// them as the user data and publishes EventUserDataChanged. The request is
// retried on transport failures only. A sub that differs from the id_token's
// fails with ErrUserInfoSubjectMismatch.
func (p *Provider) UserInfo(ctx context.Context) (map[string]interface{}, error) {
	const op = "Provider.UserInfo"
	r, ok, err := p.AuthResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || r.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	var claims *IDTokenClaims
	if r.IDToken != "" {
		claims = &IDTokenClaims{}
		if err := r.IDToken.Claims(claims); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	info, err := p.userInfo(ctx, r.AccessToken, claims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return info, nil
}

func (p *Provider) userInfo(ctx context.Context, accessToken AccessToken, claims *IDTokenClaims) (map[string]interface{}, error) {
	eps, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if eps.UserInfoEndpoint == "" {
		return nil, ErrMissingUserInfoEndpoint
	}
	req := p.request()
	req.BearerToken = string(accessToken)
	b, err := retry(ctx, p.logger, retryTransport, func() ([]byte, error) {
		return p.client.Get(ctx, eps.UserInfoEndpoint, req)
	})
	if err != nil {
		p.logger.Error("userinfo request failed", "error", err)
		return nil, err
	}
	var info map[string]interface{}
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("unable to decode userinfo: %w", err)
	}
	if claims != nil {
		if sub, _ := info["sub"].(string); sub != claims.Subject {
			p.logger.Error("userinfo sub does not match id_token sub")
			return nil, ErrUserInfoSubjectMismatch
		}
	}
	if err := p.storeUserData(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}
