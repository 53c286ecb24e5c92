// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestApplyOpts(t *testing.T) {
	// ApplyOpts testing is covered by other tests but we do have just more
	// more test to add here.
	// Let's make sure we don't panic on nil options
	anonymousOpts := struct {
		Names []string
	}{
		nil,
	}
	ApplyOpts(anonymousOpts, nil)
}

func Test_getProviderOpts(t *testing.T) {
	t.Parallel()
	t.Run("defaults", func(t *testing.T) {
		assert := assert.New(t)
		opts := getProviderOpts()
		assert.Nil(opts.withLogger)
		assert.Nil(opts.withHTTPClient)
		assert.NotNil(opts.withNow)
	})
	t.Run("WithLogger-and-WithNow", func(t *testing.T) {
		assert := assert.New(t)
		l := hclog.New(nil)
		now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		opts := getProviderOpts(WithLogger(l), WithNow(func() time.Time { return now }))
		assert.Equal(l, opts.withLogger)
		assert.Equal(now, opts.withNow())

		vopts := getValidatorOpts(WithLogger(l), WithNow(func() time.Time { return now }))
		assert.Equal(l, vopts.withLogger)
		assert.Equal(now, vopts.withNow())
	})
	t.Run("request-options-ignored", func(t *testing.T) {
		opts := getProviderOpts(WithPrompt("login"), WithCustomParams(Params{{Key: "a", Value: "b"}}))
		assert.Equal(t, getProviderOpts().withHTTPClient, opts.withHTTPClient)
	})
}

func Test_getRequestOpts(t *testing.T) {
	t.Parallel()
	t.Run("defaults", func(t *testing.T) {
		assert := assert.New(t)
		opts := getRequestOpts()
		assert.Equal(LogoffGet, opts.withLogoffMethod)
		assert.Empty(opts.withCustomParams)
		assert.Empty(opts.withPrompt)
	})
	t.Run("custom-params-append", func(t *testing.T) {
		opts := getRequestOpts(
			WithCustomParams(Params{{Key: "a", Value: "1"}}),
			WithCustomParams(Params{{Key: "b", Value: "2"}}),
			WithUILocales(language.German, language.BritishEnglish),
		)
		assert.Equal(t, Params{
			{Key: "a", Value: "1"},
			{Key: "b", Value: "2"},
			{Key: "ui_locales", Value: "de en-GB"},
		}, opts.withCustomParams)
	})
	t.Run("no-locales", func(t *testing.T) {
		assert.Empty(t, getRequestOpts(WithUILocales()).withCustomParams)
	})
	t.Run("logoff-method", func(t *testing.T) {
		assert.Equal(t, LogoffPost, getRequestOpts(WithLogoffMethod("post")).withLogoffMethod)
	})
}
