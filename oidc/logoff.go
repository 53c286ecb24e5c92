// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
)

const (
	tokenTypeHintAccess  = "access_token"
	tokenTypeHintRefresh = "refresh_token"
)

// EndSessionURL returns the url that ends the session at the provider, or
// "" when the provider has no end session endpoint.
// Supported options:
//
//	WithCustomParams
func (p *Provider) EndSessionURL(ctx context.Context, opt ...Option) (string, error) {
	const op = "Provider.EndSessionURL"
	opts := getRequestOpts(opt...)
	eps, _, err := p.CachedEndpoints(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	idToken, err := p.IDToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	u, err := p.builder(eps).endSessionURL(string(idToken), opts.withCustomParams)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Logoff ends the session at the provider.
//
// Without an end session url nothing happens. When the session checker
// reports that the provider's session already changed, only the local data
// is cleared. With WithURLHandler the handler receives the url and the
// local data is cleared. Otherwise the local data is cleared and the user
// agent is redirected to the url, or, with WithLogoffMethod(LogoffPost),
// the end session endpoint is sent id_token_hint, client_id,
// post_logout_redirect_uri and the custom params in a form POST.
// Supported options:
//
//	WithCustomParams
//	WithURLHandler
//	WithLogoffMethod
func (p *Provider) Logoff(ctx context.Context, opt ...Option) error {
	const op = "Provider.Logoff"
	opts := getRequestOpts(opt...)
	u, err := p.EndSessionURL(ctx, opt...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if u == "" {
		p.logger.Debug("no end session url, nothing to do")
		return nil
	}
	if p.sessionChecker.ServerStateChanged(p.config.ConfigID) {
		p.logger.Debug("server session already changed, logging off locally")
		return p.logoffLocal(ctx, op)
	}
	if opts.withURLHandler != nil {
		p.logger.Debug("handing end session url to url handler")
		opts.withURLHandler(u)
		return p.logoffLocal(ctx, op)
	}

	if opts.withLogoffMethod == LogoffPost {
		eps, _, err := p.CachedEndpoints(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		idToken, err := p.IDToken(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := p.logoffLocal(ctx, op); err != nil {
			return err
		}
		b := p.builder(eps)
		target := u
		if eps != nil && eps.EndSessionEndpoint != "" {
			target = eps.EndSessionEndpoint
		}
		if _, err := p.client.Post(ctx, target, b.endSessionBody(string(idToken), opts.withCustomParams), formRequest()); err != nil {
			p.logger.Error("end session request failed", "error", err)
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	if p.navigator == nil {
		return fmt.Errorf("%s: %w", op, ErrMissingNavigator)
	}
	if err := p.logoffLocal(ctx, op); err != nil {
		return err
	}
	if err := p.navigator.RedirectTo(ctx, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogoffLocal stops the session checker and removes the tokens, the user
// data and the flow values of the config. The discovered endpoints are kept.
// No request is made.
func (p *Provider) LogoffLocal(ctx context.Context) error {
	return p.logoffLocal(ctx, "Provider.LogoffLocal")
}

func (p *Provider) logoffLocal(ctx context.Context, op string) error {
	p.sessionChecker.Stop(p.config.ConfigID)
	for _, k := range sessionKeys {
		if err := p.storage.remove(ctx, k); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	p.publish(EventUserDataChanged, nil)
	return nil
}

// RevokeAccessToken revokes token, or the stored access token when token is
// empty. The request is retried on transport failures only.
func (p *Provider) RevokeAccessToken(ctx context.Context, token string) error {
	const op = "Provider.RevokeAccessToken"
	if token == "" {
		t, err := p.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		token = string(t)
	}
	if err := p.revoke(ctx, token, tokenTypeHintAccess); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RevokeRefreshToken revokes token, or the stored refresh token when token
// is empty. The request is retried on transport failures only.
func (p *Provider) RevokeRefreshToken(ctx context.Context, token string) error {
	const op = "Provider.RevokeRefreshToken"
	if token == "" {
		t, err := p.RefreshToken(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		token = string(t)
	}
	if err := p.revoke(ctx, token, tokenTypeHintRefresh); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Provider) revoke(ctx context.Context, token, hint string) error {
	eps, ok, err := p.CachedEndpoints(ctx)
	if err != nil {
		return err
	}
	if !ok || eps.RevocationEndpoint == "" {
		return ErrMissingRevocationEndpoint
	}
	body := p.builder(eps).revocationBody(token, hint)
	if body == "" {
		return ErrMissingClientID
	}
	_, err = retry(ctx, p.logger, retryTransport, func() ([]byte, error) {
		return p.client.Post(ctx, eps.RevocationEndpoint, body, formRequest())
	})
	if err != nil {
		p.logger.Error("token revocation failed", "token_type_hint", hint, "error", err)
		return err
	}
	return nil
}

// LogoffAndRevokeTokens revokes the stored refresh token, if there is one,
// then the access token, then calls Logoff. A failed revocation is returned
// and Logoff is not called. A provider without a revocation endpoint is only
// logged off.
// Supported options:
//
//	WithCustomParams
//	WithURLHandler
//	WithLogoffMethod
func (p *Provider) LogoffAndRevokeTokens(ctx context.Context, opt ...Option) error {
	const op = "Provider.LogoffAndRevokeTokens"
	eps, ok, err := p.CachedEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok || eps.RevocationEndpoint == "" {
		p.logger.Debug("revocation endpoint not supported, logging off only")
		return p.Logoff(ctx, opt...)
	}
	refresh, err := p.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if refresh != "" {
		if err := p.RevokeRefreshToken(ctx, string(refresh)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := p.RevokeAccessToken(ctx, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.Logoff(ctx, opt...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
