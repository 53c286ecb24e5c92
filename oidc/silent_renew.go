// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

const silentRenewStateRunning = "running"

// silentRenewRecord is the stored running flag.
type silentRenewRecord struct {
	State                    string `json:"state"`
	DateOfLaunchedProcessUtc string `json:"dateOfLaunchedProcessUtc"`
}

// silentRenewOptions is the set of available options for
// SilentRenewCoordinator
type silentRenewOptions struct {
	withLogger hclog.Logger
	withNow    func() time.Time
}

func silentRenewDefaults() silentRenewOptions {
	return silentRenewOptions{withNow: time.Now}
}

func getSilentRenewOpts(opt ...Option) silentRenewOptions {
	opts := silentRenewDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// SilentRenewCoordinator keeps two renews of the same config from
// overlapping. It is a cooperative lock over Storage, not an atomic one: a
// renew that never finished is presumed dead once the config's silent renew
// timeout elapsed, and its flag is cleared by the next IsRunning.
type SilentRenewCoordinator struct {
	store   store
	timeout time.Duration
	now     func() time.Time
	logger  hclog.Logger
}

// NewSilentRenewCoordinator creates a SilentRenewCoordinator for c.
// Supported options:
//
//	WithLogger
//	WithNow
func NewSilentRenewCoordinator(s Storage, c *Config, opt ...Option) *SilentRenewCoordinator {
	opts := getSilentRenewOpts(opt...)
	sr := &SilentRenewCoordinator{
		store:   store{s: s, configID: c.ConfigID},
		timeout: c.SilentRenewTimeout(),
		now:     opts.withNow,
		logger:  opts.withLogger,
	}
	if sr.timeout <= 0 {
		sr.timeout = DefaultSilentRenewTimeout
	}
	if sr.logger == nil {
		sr.logger = hclog.NewNullLogger()
	}
	return sr
}

// IsRunning reports whether a renew is running. A flag older than the
// timeout, or one that cannot be decoded, is cleared and reported as not
// running.
func (sr *SilentRenewCoordinator) IsRunning(ctx context.Context) (bool, error) {
	const op = "SilentRenewCoordinator.IsRunning"
	raw, _, err := sr.store.read(ctx, KeySilentRenewRunning)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if raw == "" {
		return false, nil
	}
	var rec silentRenewRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.State != silentRenewStateRunning {
		sr.logger.Debug("clearing unreadable silent renew flag", "value", raw)
		return false, sr.reset(ctx, op)
	}
	launched, err := time.Parse(time.RFC3339Nano, rec.DateOfLaunchedProcessUtc)
	if err != nil {
		sr.logger.Debug("clearing unreadable silent renew flag", "value", raw)
		return false, sr.reset(ctx, op)
	}
	if elapsed := sr.now().Sub(launched); elapsed > sr.timeout {
		sr.logger.Debug("silent renew timed out, clearing flag", "elapsed", elapsed, "timeout", sr.timeout)
		return false, sr.reset(ctx, op)
	}
	return true, nil
}

// Start marks a renew as running now.
func (sr *SilentRenewCoordinator) Start(ctx context.Context) error {
	const op = "SilentRenewCoordinator.Start"
	rec := silentRenewRecord{
		State:                    silentRenewStateRunning,
		DateOfLaunchedProcessUtc: sr.now().UTC().Format(time.RFC3339Nano),
	}
	if err := sr.store.writeJSON(ctx, KeySilentRenewRunning, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Reset marks no renew as running.
func (sr *SilentRenewCoordinator) Reset(ctx context.Context) error {
	return sr.reset(ctx, "SilentRenewCoordinator.Reset")
}

func (sr *SilentRenewCoordinator) reset(ctx context.Context, op string) error {
	if err := sr.store.write(ctx, KeySilentRenewRunning, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TryStart starts a renew unless one is running. It reports whether it did.
func (sr *SilentRenewCoordinator) TryStart(ctx context.Context) (bool, error) {
	running, err := sr.IsRunning(ctx)
	if err != nil || running {
		return false, err
	}
	if err := sr.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// StartSilentRenew starts a silent renew through the authorize endpoint and
// returns the url to load in a hidden frame. Its callback is handled by
// HandleCodeCallback or HandleImplicitCallback, which recognize the renew
// from the running flag. ErrSilentRenewRunning is returned while another
// renew of the config runs.
// Supported options:
//
//	WithCustomParams
//	WithPrompt
func (p *Provider) StartSilentRenew(ctx context.Context, opt ...Option) (string, error) {
	const op = "Provider.StartSilentRenew"
	started, err := p.silentRenew.TryStart(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !started {
		return "", fmt.Errorf("%s: %w", op, ErrSilentRenewRunning)
	}
	p.publish(EventSilentRenewStarted, nil)
	u, err := p.SilentRenewURL(ctx, opt...)
	if err == nil && u == "" {
		err = ErrUnableToBuildURL
	}
	if err != nil {
		p.logger.Error("unable to start silent renew", "error", err)
		p.publish(EventSilentRenewFailed, err)
		if rerr := p.silentRenew.Reset(ctx); rerr != nil {
			p.logger.Error("unable to reset silent renew flag", "error", rerr)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// RenewSession renews the session with the stored refresh token when the
// config uses refresh tokens, and through a silent renew url otherwise. The
// url is empty for a refresh.
func (p *Provider) RenewSession(ctx context.Context, opt ...Option) (*CallbackContext, string, error) {
	const op = "Provider.RenewSession"
	if p.config.UseRefreshToken {
		cb, err := p.RefreshSession(ctx, opt...)
		if err != nil {
			return cb, "", fmt.Errorf("%s: %w", op, err)
		}
		return cb, "", nil
	}
	u, err := p.StartSilentRenew(ctx, opt...)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return nil, u, nil
}
