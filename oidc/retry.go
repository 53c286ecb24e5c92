// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// maxAttempts is the number of attempts made for a retried request.
const maxAttempts = 3

// retryPolicy decides which failures are attempted again.
type retryPolicy int

const (
	// retryAny retries every failure: discovery and jwks.
	retryAny retryPolicy = iota

	// retryTransport retries connection level failures only: token,
	// userinfo and revocation requests. A provider that answered with an
	// error status has made a decision that repeating the request will not
	// change.
	retryTransport
)

// retry runs fn at most maxAttempts times, immediately one after the other,
// and returns the last failure.
func retry[T any](ctx context.Context, logger hclog.Logger, policy retryPolicy, fn func() (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && policy == retryTransport && !errors.Is(err, ErrTransport) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxAttempts-1), ctx)
	notify := func(err error, _ time.Duration) {
		logger.Debug("request failed, retrying", "attempt", attempt, "error", err)
	}
	return backoff.RetryNotifyWithData(backoff.OperationWithData[T](op), b, notify)
}
