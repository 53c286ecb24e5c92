// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

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

// LogoffMethod selects how the end session request is sent.
type LogoffMethod string

const (
	LogoffGet  LogoffMethod = "GET"
	LogoffPost LogoffMethod = "POST"
)

// providerOptions is the set of available options for Provider and Client
type providerOptions struct {
	withLogger         hclog.Logger
	withHTTPClient     HTTPClient
	withNavigator      Navigator
	withEventPublisher EventPublisher
	withSessionChecker SessionChecker
	withNow            func() time.Time
}

func providerDefaults() providerOptions {
	return providerOptions{
		withNow: time.Now,
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// requestOptions is the set of available options for the per request
// operations: authorize, callbacks, refresh and logoff.
type requestOptions struct {
	withCustomParams Params
	withPrompt       string
	withURLHandler   func(string)
	withLogoffMethod LogoffMethod
}

func requestDefaults() requestOptions {
	return requestOptions{
		withLogoffMethod: LogoffGet,
	}
}

func getRequestOpts(opt ...Option) requestOptions {
	opts := requestDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: Provider, Client,
// TokenValidator, SilentRenewCoordinator
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *providerOptions:
			v.withLogger = l
		case *validatorOptions:
			v.withLogger = l
		case *silentRenewOptions:
			v.withLogger = l
		}
	}
}

// WithHTTPClient provides the HTTPClient used to talk to the provider for:
// Provider, Client
func WithHTTPClient(c HTTPClient) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withHTTPClient = c
		}
	}
}

// WithNavigator provides the Navigator used for authorize and end session
// redirects for: Provider, Client
func WithNavigator(n Navigator) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withNavigator = n
		}
	}
}

// WithEventPublisher provides an EventPublisher for: Provider, Client
func WithEventPublisher(p EventPublisher) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withEventPublisher = p
		}
	}
}

// WithSessionChecker provides a SessionChecker for: Provider, Client
func WithSessionChecker(c SessionChecker) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withSessionChecker = c
		}
	}
}

// WithNow provides an optional clock for: Provider, Client,
// TokenValidator, SilentRenewCoordinator
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *providerOptions:
			v.withNow = now
		case *validatorOptions:
			v.withNow = now
		case *silentRenewOptions:
			v.withNow = now
		}
	}
}

// WithCustomParams provides request parameters which are appended after the
// config's custom parameters of the same request type. A key that is also
// present in the config is sent twice.
func WithCustomParams(p Params) Option {
	return func(o interface{}) {
		if v, ok := o.(*requestOptions); ok {
			v.withCustomParams = append(v.withCustomParams, p...)
		}
	}
}

// WithPrompt sets the prompt parameter of an authorize request. For a silent
// renew it replaces the default "none".
func WithPrompt(prompt string) Option {
	return func(o interface{}) {
		if v, ok := o.(*requestOptions); ok {
			v.withPrompt = prompt
		}
	}
}

// WithUILocales adds the ui_locales parameter to an authorize request.
func WithUILocales(tags ...language.Tag) Option {
	return func(o interface{}) {
		if len(tags) == 0 {
			return
		}
		if v, ok := o.(*requestOptions); ok {
			locales := make([]string, 0, len(tags))
			for _, t := range tags {
				locales = append(locales, t.String())
			}
			v.withCustomParams = append(v.withCustomParams, Param{Key: "ui_locales", Value: strings.Join(locales, " ")})
		}
	}
}

// WithURLHandler replaces the Navigator for a single authorize or logoff
// call. The handler receives the url instead of the user agent being
// redirected.
func WithURLHandler(h func(url string)) Option {
	return func(o interface{}) {
		if v, ok := o.(*requestOptions); ok {
			v.withURLHandler = h
		}
	}
}

// WithLogoffMethod selects GET (redirect, the default) or POST for the end
// session request.
func WithLogoffMethod(m LogoffMethod) Option {
	return func(o interface{}) {
		if v, ok := o.(*requestOptions); ok {
			v.withLogoffMethod = LogoffMethod(strings.ToUpper(string(m)))
		}
	}
}
