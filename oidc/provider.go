// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	sdkhttp "github.com/hashicorp/oidc-rp/sdk/http"
)

// Provider runs the oidc flows of one Config. All of its state lives in
// Storage under the config's id, so a Provider can be recreated at any time
// and several Providers for different configs can share one Storage.
//
// Provider is safe for concurrent use by multiple goroutines, but the flow
// operations of one config are meant to be issued one at a time.
type Provider struct {
	config         *Config
	storage        store
	client         HTTPClient
	navigator      Navigator
	events         EventPublisher
	sessionChecker SessionChecker
	logger         hclog.Logger
	now            func() time.Time

	flow        *FlowState
	silentRenew *SilentRenewCoordinator
}

// NewProvider creates a Provider for c. The config is copied, defaulted and
// validated. No request is made to the provider.
// Supported options:
//
//	WithLogger
//	WithHTTPClient
//	WithNavigator
//	WithEventPublisher
//	WithSessionChecker
//	WithNow
func NewProvider(c *Config, s Storage, opt ...Option) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	cfg := c.Clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	opts := getProviderOpts(opt...)
	logger := opts.withLogger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("oidc").With("config_id", cfg.ConfigID)

	p := &Provider{
		config:         cfg,
		storage:        store{s: s, configID: cfg.ConfigID},
		client:         opts.withHTTPClient,
		navigator:      opts.withNavigator,
		events:         opts.withEventPublisher,
		sessionChecker: opts.withSessionChecker,
		logger:         logger,
		now:            opts.withNow,
		flow:           NewFlowState(s, cfg.ConfigID),
	}
	if p.client == nil {
		client, err := sdkhttp.New(sdkhttp.WithLogger(logger.Named("http")))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
		p.client = client
	}
	if p.events == nil {
		p.events = noEvents{}
	}
	if p.sessionChecker == nil {
		p.sessionChecker = noSessionChecker{}
	}
	p.silentRenew = NewSilentRenewCoordinator(s, cfg, WithNow(p.now), WithLogger(logger))
	return p, nil
}

// Config returns a copy of the provider's config.
func (p *Provider) Config() *Config { return p.config.Clone() }

// ConfigID returns the id of the provider's config.
func (p *Provider) ConfigID() string { return p.config.ConfigID }

// FlowState returns the provider's flow state.
func (p *Provider) FlowState() *FlowState { return p.flow }

// SilentRenew returns the provider's silent renew coordinator.
func (p *Provider) SilentRenew() *SilentRenewCoordinator { return p.silentRenew }

func (p *Provider) publish(t EventType, v interface{}) {
	p.events.Publish(Event{Type: t, ConfigID: p.config.ConfigID, Value: v})
}

func (p *Provider) request() sdkhttp.Request {
	return sdkhttp.Request{BypassServiceWorker: p.config.NgswBypass}
}

// AuthResult returns the stored tokens. The bool is false when there are
// none.
func (p *Provider) AuthResult(ctx context.Context) (*AuthResult, bool, error) {
	const op = "Provider.AuthResult"
	var tr tokenResponse
	ok, err := p.storage.readJSON(ctx, KeyAuthnResult, &tr)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, false, nil
	}
	r := tr.authResult(p.now())
	r.Expiry = time.Time{}
	raw, found, err := p.storage.read(ctx, KeyAccessTokenExpiresAt)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if found && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%s: invalid %s: %w", op, KeyAccessTokenExpiresAt, err)
		}
		r.Expiry = time.UnixMilli(ms)
	}
	return r, true, nil
}

// AccessToken returns the stored access token.
func (p *Provider) AccessToken(ctx context.Context) (AccessToken, error) {
	r, ok, err := p.AuthResult(ctx)
	if err != nil || !ok {
		return "", err
	}
	return r.AccessToken, nil
}

// IDToken returns the stored id_token.
func (p *Provider) IDToken(ctx context.Context) (IDToken, error) {
	r, ok, err := p.AuthResult(ctx)
	if err != nil || !ok {
		return "", err
	}
	return r.IDToken, nil
}

// RefreshToken returns the stored refresh token.
func (p *Provider) RefreshToken(ctx context.Context) (RefreshToken, error) {
	r, ok, err := p.AuthResult(ctx)
	if err != nil || !ok {
		return "", err
	}
	return r.RefreshToken, nil
}

// IsAuthenticated reports whether an id_token is stored and has not expired.
// An expired id_token publishes EventTokenExpired.
func (p *Provider) IsAuthenticated(ctx context.Context) (bool, error) {
	const op = "Provider.IsAuthenticated"
	t, err := p.IDToken(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if t == "" {
		return false, nil
	}
	var claims IDTokenClaims
	if err := t.Claims(&claims); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Expiry == nil || !claims.Expiry.Time().After(p.now()) {
		p.logger.Debug("id_token expired")
		p.publish(EventTokenExpired, true)
		return false, nil
	}
	return true, nil
}

// UserData returns the stored user data: the userinfo response, or the
// id_token claims when userinfo was not fetched.
func (p *Provider) UserData(ctx context.Context) (map[string]interface{}, error) {
	const op = "Provider.UserData"
	var data map[string]interface{}
	if _, err := p.storage.readJSON(ctx, KeyUserData, &data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (p *Provider) storeUserData(ctx context.Context, data map[string]interface{}) error {
	if err := p.storage.writeJSON(ctx, KeyUserData, data); err != nil {
		return err
	}
	p.publish(EventUserDataChanged, data)
	return nil
}

// storeAuthResult persists the tokens and the access token's expiry.
func (p *Provider) storeAuthResult(ctx context.Context, r *AuthResult) error {
	if err := p.storage.writeJSON(ctx, KeyAuthnResult, r.response()); err != nil {
		return err
	}
	if err := p.storage.write(ctx, KeyAuthzData, string(r.AccessToken)); err != nil {
		return err
	}
	if r.Expiry.IsZero() {
		return p.storage.remove(ctx, KeyAccessTokenExpiresAt)
	}
	return p.storage.write(ctx, KeyAccessTokenExpiresAt, strconv.FormatInt(r.Expiry.UnixMilli(), 10))
}
