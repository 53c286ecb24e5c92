// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
)

// RefreshSession renews the tokens with the stored refresh token. It holds
// the silent renew flag while it runs and fails with ErrSilentRenewRunning
// when another renew of the config is running.
//
// The request is retried on transport failures only. A returned id_token
// must keep the iss, sub and aud of the stored one; its nonce is not
// checked. When no id_token is returned the stored one is kept, and so is
// the stored refresh token when no new one is returned.
// Supported options:
//
//	WithCustomParams
func (p *Provider) RefreshSession(ctx context.Context, opt ...Option) (*CallbackContext, error) {
	const op = "Provider.RefreshSession"
	opts := getRequestOpts(opt...)
	cb := &CallbackContext{Step: StepStart, IsRenewProcess: true}

	started, err := p.silentRenew.TryStart(ctx)
	if err != nil {
		return cb, fmt.Errorf("%s: %w", op, err)
	}
	if !started {
		return cb, fmt.Errorf("%s: %w", op, ErrSilentRenewRunning)
	}
	p.publish(EventSilentRenewStarted, nil)

	current, ok, err := p.AuthResult(ctx)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	if !ok || current.RefreshToken == "" {
		return p.failCallback(ctx, op, cb, ErrMissingRefreshToken)
	}
	cb.RefreshToken = string(current.RefreshToken)
	cb.ExistingIDToken = string(current.IDToken)
	cb.advance(StepParamsExtracted)

	eps, ok, err := p.CachedEndpoints(ctx)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	if !ok || eps.TokenEndpoint == "" {
		return p.failCallback(ctx, op, cb, ErrMissingTokenEndpoint)
	}
	body := p.builder(eps).refreshBody(cb.RefreshToken, opts.withCustomParams)
	if body == "" {
		return p.failCallback(ctx, op, cb, ErrMissingClientID)
	}
	cb.advance(StepStateValidated)

	resp, err := retry(ctx, p.logger, retryTransport, func() ([]byte, error) {
		return p.client.Post(ctx, eps.TokenEndpoint, body, formRequest())
	})
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	if cb.AuthResult, err = parseTokenResponse(resp, p.now()); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	if cb.AuthResult.RefreshToken == "" {
		cb.AuthResult.RefreshToken = current.RefreshToken
	}
	cb.advance(StepCodeExchanged)

	if cb.AuthResult.IDToken == "" {
		cb.AuthResult.IDToken = current.IDToken
	} else {
		if err := p.validateRefreshedTokens(ctx, cb, eps); err != nil {
			return p.failCallback(ctx, op, cb, err)
		}
	}
	cb.advance(StepTokensValidated)

	if err := p.persistCallback(ctx, cb); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.advance(StepPersisted)
	return cb, nil
}

func (p *Provider) validateRefreshedTokens(ctx context.Context, cb *CallbackContext, eps *Endpoints) error {
	keys, err := p.SigningKeys(ctx)
	if err != nil {
		return err
	}
	cb.JWTKeys = keys
	var previous *IDTokenClaims
	if cb.ExistingIDToken != "" {
		previous = &IDTokenClaims{}
		if err := IDToken(cb.ExistingIDToken).Claims(previous); err != nil {
			return err
		}
	}
	v := NewTokenValidator(p.config, eps, keys, WithNow(p.now), WithLogger(p.logger))
	cb.ValidationResult = v.Validate(ctx, ValidationInput{
		IDToken:     string(cb.AuthResult.IDToken),
		SkipNonce:   true,
		AccessToken: string(cb.AuthResult.AccessToken),
		Previous:    previous,
	})
	return cb.ValidationResult.Err()
}
