// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package redis

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type options struct {
	withKeyPrefix string
	withTTL       time.Duration
	withLogger    hclog.Logger
}

func getDefaults() options {
	return options{withKeyPrefix: DefaultKeyPrefix}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// WithKeyPrefix provides an optional prefix for the hash names.
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withKeyPrefix = prefix
		}
	}
}

// WithTTL provides an optional expiry of a config's hash after its last
// write.
func WithTTL(ttl time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withTTL = ttl
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}
