// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"

	"github.com/hashicorp/oidc-rp/jwt"
)

// SigningKeys fetches the provider's jwks from the discovered jwks uri. It
// never runs discovery itself: without stored endpoints, or with an empty
// jwks uri, it fails with ErrMissingJWKSURI. The request is made up to 3
// times whatever the failure.
func (p *Provider) SigningKeys(ctx context.Context) (*jwt.JSONWebKeySet, error) {
	const op = "Provider.SigningKeys"
	eps, ok, err := p.CachedEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || eps.JWKSURI == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingJWKSURI)
	}
	ks, err := retry(ctx, p.logger, retryAny, func() (*jwt.JSONWebKeySet, error) {
		b, err := p.client.Get(ctx, eps.JWKSURI, p.request())
		if err != nil {
			return nil, err
		}
		return jwt.ParseKeySet(b)
	})
	if err != nil {
		p.logger.Error("unable to fetch signing keys", "url", eps.JWKSURI, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ks, nil
}
