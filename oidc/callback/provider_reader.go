// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/oidc-rp/oidc"
)

// DefaultConfigIDParam is the request parameter ClientProviderReader reads
// the config id from.
const DefaultConfigIDParam = "config_id"

// ProviderReader defines an interface for finding the oidc.Provider a
// callback request belongs to.
//
// Implementations must be concurrently safe, since the reader will likely be
// used within a concurrent http.Handler
type ProviderReader interface {
	Read(ctx context.Context, req *http.Request) (*oidc.Provider, error)
}

// SingleProviderReader implements the ProviderReader interface for a single
// provider. It is concurrently safe.
type SingleProviderReader struct {
	Provider *oidc.Provider
}

// Read returns the reader's provider.
func (r *SingleProviderReader) Read(_ context.Context, _ *http.Request) (*oidc.Provider, error) {
	const op = "SingleProviderReader.Read"
	if r.Provider == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	}
	return r.Provider, nil
}

// ClientProviderReader implements the ProviderReader interface for the
// providers of an oidc.Client. The config id is read from the request
// parameter Param, which the config's redirect urls must carry.
type ClientProviderReader struct {
	Client *oidc.Client
	Param  string
}

// Read returns the provider of the config id in the request.
func (r *ClientProviderReader) Read(_ context.Context, req *http.Request) (*oidc.Provider, error) {
	const op = "ClientProviderReader.Read"
	if r.Client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, oidc.ErrNilParameter)
	}
	param := r.Param
	if param == "" {
		param = DefaultConfigIDParam
	}
	p, err := r.Client.Provider(req.FormValue(param))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}
