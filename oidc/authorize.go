// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
)

func (p *Provider) builder(eps *Endpoints) urlBuilder {
	return urlBuilder{config: p.config, endpoints: eps, logger: p.logger}
}

// newAuthorizeRequest creates the flow values of an authorize request: the
// csrf state is reused if one is stored, a new nonce is always created and,
// for the code flow, a new code verifier unless pkce is disabled. It returns
// false when the config cannot produce an authorize request, without
// touching the flow state.
func (p *Provider) newAuthorizeRequest(ctx context.Context, renew bool, opts requestOptions) (authorizeRequest, bool, error) {
	r := authorizeRequest{
		redirectURL: p.config.redirectTarget(renew),
		prompt:      opts.withPrompt,
		custom:      opts.withCustomParams,
	}
	if renew && r.prompt == "" {
		r.prompt = "none"
	}
	if !p.builder(nil).canAuthorize(r.redirectURL) {
		return r, false, nil
	}
	var err error
	if r.state, err = p.flow.GetOrCreateAuthStateControl(ctx); err != nil {
		return r, false, err
	}
	if r.nonce, err = p.flow.CreateNonce(ctx); err != nil {
		return r, false, err
	}
	if p.config.IsCodeFlow() && !p.config.DisablePKCE {
		verifier, err := p.flow.CreateCodeVerifier(ctx)
		if err != nil {
			return r, false, err
		}
		if r.codeChallenge, err = CodeChallenge(verifier); err != nil {
			return r, false, err
		}
	}
	return r, true, nil
}

func (p *Provider) authorizeURL(ctx context.Context, renew bool, opts requestOptions) (string, error) {
	eps, err := p.Discover(ctx)
	if err != nil {
		return "", err
	}
	if eps.AuthorizationEndpoint == "" {
		p.logger.Debug("cannot build authorize url: missing authorization endpoint")
		return "", nil
	}
	r, ok, err := p.newAuthorizeRequest(ctx, renew, opts)
	if err != nil || !ok {
		return "", err
	}
	return p.builder(eps).authorizeURL(r)
}

// AuthorizeURL returns the url which starts an authentication at the
// provider, for the code flow or the implicit flow depending on the config's
// response type. The endpoints are discovered when they are not stored yet.
//
// An empty url and a nil error are returned when the config lacks a client
// id, response type, scope or (for the code flow) a redirect url, or when
// the provider has no authorization endpoint.
// Supported options:
//
//	WithCustomParams
//	WithPrompt
//	WithUILocales
func (p *Provider) AuthorizeURL(ctx context.Context, opt ...Option) (string, error) {
	const op = "Provider.AuthorizeURL"
	u, err := p.authorizeURL(ctx, false, getRequestOpts(opt...))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SilentRenewURL returns an authorize url for a silent renew: the redirect
// uri is the silent renew url and prompt is "none" unless WithPrompt is
// used. It has the same soft failures as AuthorizeURL.
// Supported options:
//
//	WithCustomParams
//	WithPrompt
//	WithUILocales
func (p *Provider) SilentRenewURL(ctx context.Context, opt ...Option) (string, error) {
	const op = "Provider.SilentRenewURL"
	u, err := p.authorizeURL(ctx, true, getRequestOpts(opt...))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// parResponse is the pushed authorization request response.
type parResponse struct {
	RequestURI string    `json:"request_uri"`
	ExpiresIn  expiresIn `json:"expires_in"`
}

// AuthorizeURLWithPAR pushes the authorize parameters to the provider's
// pushed authorization request endpoint and returns an authorize url that
// references them by request_uri.
//
// The push is retried on transport failures only. A provider without a par
// endpoint fails with ErrMissingPAREndpoint. It has the same soft failures as
// AuthorizeURL.
// Supported options:
//
//	WithCustomParams
//	WithPrompt
//	WithUILocales
func (p *Provider) AuthorizeURLWithPAR(ctx context.Context, opt ...Option) (string, error) {
	const op = "Provider.AuthorizeURLWithPAR"
	opts := getRequestOpts(opt...)
	eps, err := p.Discover(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if eps.PAREndpoint == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingPAREndpoint)
	}
	r, ok, err := p.newAuthorizeRequest(ctx, false, opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", nil
	}
	b := p.builder(eps)
	resp, err := retry(ctx, p.logger, retryTransport, func() ([]byte, error) {
		return p.client.Post(ctx, eps.PAREndpoint, b.parBody(r), formRequest())
	})
	if err != nil {
		p.logger.Error("pushed authorization request failed", "error", err)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var par parResponse
	if err := json.Unmarshal(resp, &par); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrInvalidPARResponse, err)
	}
	if par.RequestURI == "" {
		return "", fmt.Errorf("%s: missing request_uri: %w", op, ErrInvalidPARResponse)
	}
	u, err := b.parAuthorizeURL(par.RequestURI)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Authorize starts an authentication: it marks the code flow as in progress
// and sends the user agent to the authorize url, or to the url handler when
// WithURLHandler is used. Pushed authorization requests are used when the
// config enables them.
// Supported options:
//
//	WithCustomParams
//	WithPrompt
//	WithUILocales
//	WithURLHandler
func (p *Provider) Authorize(ctx context.Context, opt ...Option) error {
	const op = "Provider.Authorize"
	opts := getRequestOpts(opt...)
	if opts.withURLHandler == nil && p.navigator == nil {
		return fmt.Errorf("%s: %w", op, ErrMissingNavigator)
	}
	var (
		u   string
		err error
	)
	if p.config.UsePushedAuthorisationRequests {
		u, err = p.AuthorizeURLWithPAR(ctx, opt...)
	} else {
		u, err = p.AuthorizeURL(ctx, opt...)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if u == "" {
		p.logger.Error("unable to build authorize url")
		return fmt.Errorf("%s: %w", op, ErrUnableToBuildURL)
	}
	if p.config.IsCodeFlow() {
		if err := p.flow.SetCodeFlowInProgress(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if opts.withURLHandler != nil {
		opts.withURLHandler(u)
		return nil
	}
	if err := p.navigator.RedirectTo(ctx, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
