// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"

	sdkhttp "github.com/hashicorp/oidc-rp/sdk/http"
)

// HTTPClient sends requests to a provider. Get must ask for json. Errors
// must match ErrTransport when no response was received and ErrHTTPStatus
// for a non-2xx response, since the retry policy depends on the difference.
type HTTPClient interface {
	Get(ctx context.Context, url string, r sdkhttp.Request) ([]byte, error)
	Post(ctx context.Context, url string, body string, r sdkhttp.Request) ([]byte, error)
}

// ensure that the default transport implements HTTPClient
var _ HTTPClient = (*sdkhttp.Client)(nil)

// Navigator sends the user agent to a url.
type Navigator interface {
	RedirectTo(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to a Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

// RedirectTo implements Navigator.
func (f NavigatorFunc) RedirectTo(ctx context.Context, url string) error { return f(ctx, url) }

// SessionChecker monitors the provider's session, typically through the
// check_session_iframe.
type SessionChecker interface {
	// ServerStateChanged reports whether the provider signalled that the
	// session of configID changed.
	ServerStateChanged(configID string) bool

	// Stop stops monitoring configID.
	Stop(configID string)
}

type noSessionChecker struct{}

func (noSessionChecker) ServerStateChanged(string) bool { return false }
func (noSessionChecker) Stop(string)                    {}

func formRequest() sdkhttp.Request {
	return sdkhttp.Request{Header: map[string][]string{"Content-Type": {sdkhttp.ContentTypeForm}}}
}
