// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import "os"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type options struct {
	withEnvFiles  []string
	withLookupEnv func(string) (string, bool)
}

func getDefaults() options {
	return options{withLookupEnv: os.LookupEnv}
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

// WithEnvFiles provides optional .env files which are loaded into the
// environment before ${VAR} references are expanded. Variables which are
// already set are not overridden.
func WithEnvFiles(files ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withEnvFiles = append(o.withEnvFiles, files...)
		}
	}
}

// WithLookupEnv provides an optional lookup for ${VAR} references. It
// defaults to os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && fn != nil {
			o.withLookupEnv = fn
		}
	}
}
