// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type clientOptions struct {
	withCACert     string
	withHTTPClient *http.Client
	withLogger     hclog.Logger
}

func clientDefaults() clientOptions {
	return clientOptions{}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithCACert provides an optional PEM encoded CA cert used to verify the
// provider's TLS certificate.
func WithCACert(pem string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withCACert = pem
		}
	}
}

// WithHTTPClient provides the *http.Client to use. It takes precedence over
// WithCACert.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withLogger = l
		}
	}
}
