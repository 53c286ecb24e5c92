// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type selectOptions struct {
	withAllowEmpty bool
}

func selectDefaults() selectOptions {
	return selectOptions{}
}

// getSelectOpts gets the defaults and applies the opt overrides passed
// in.
func getSelectOpts(opt ...Option) selectOptions {
	opts := selectDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithAllowEmpty makes SelectKeys return an empty result instead of
// ErrNoMatchingKey when a spec matches nothing.
func WithAllowEmpty() Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *selectOptions:
			v.withAllowEmpty = true
		}
	}
}
