// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// WellKnownURL returns the discovery document url of c: the well-known
// endpoint url with the well-known suffix appended, unless the url already
// contains the suffix anywhere.
func WellKnownURL(c *Config) (string, error) {
	const op = "oidc.WellKnownURL"
	if c == nil {
		return "", fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.AuthWellknownEndpointURL == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingWellKnownURL)
	}
	suffix := c.AuthWellknownURLSuffix
	if suffix == "" {
		suffix = DefaultWellKnownSuffix
	}
	if strings.Contains(c.AuthWellknownEndpointURL, suffix) {
		return c.AuthWellknownEndpointURL, nil
	}
	return c.AuthWellknownEndpointURL + suffix, nil
}

// CachedEndpoints returns the stored endpoints without making a request.
// The bool is false when discovery has not run yet.
func (p *Provider) CachedEndpoints(ctx context.Context) (*Endpoints, bool, error) {
	const op = "Provider.CachedEndpoints"
	var eps Endpoints
	ok, err := p.storage.readJSON(ctx, KeyAuthWellKnownEndpoints, &eps)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &eps, true, nil
}

// Discover returns the provider's endpoints. They are fetched from the
// discovery document once, with the config's endpoint overrides applied on
// top, and served from Storage afterwards.
//
// The document is requested up to 3 times whatever the failure. When every
// attempt fails EventConfigLoadingFailed is published and the error matches
// ErrDiscoveryFailed.
func (p *Provider) Discover(ctx context.Context) (*Endpoints, error) {
	const op = "Provider.Discover"
	if eps, ok, err := p.CachedEndpoints(ctx); err != nil || ok {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return eps, nil
	}

	u, err := WellKnownURL(p.config)
	if err != nil {
		p.logger.Error("unable to resolve well-known url", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	doc, err := retry(ctx, p.logger, retryAny, func() (*discoveryDocument, error) {
		b, err := p.client.Get(ctx, u, p.request())
		if err != nil {
			return nil, err
		}
		var doc discoveryDocument
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("unable to decode discovery document: %w", err)
		}
		return &doc, nil
	})
	if err != nil {
		p.logger.Error("discovery failed", "url", u, "error", err)
		err = fmt.Errorf("%s: %s: %w: %w", op, u, ErrDiscoveryFailed, err)
		p.publish(EventConfigLoadingFailed, err)
		return nil, err
	}

	eps := doc.endpoints().Merge(p.config.AuthWellknownEndpoints)
	if err := p.storage.writeJSON(ctx, KeyAuthWellKnownEndpoints, eps); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.logger.Debug("discovered endpoints", "issuer", eps.Issuer)
	return &eps, nil
}
