// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Client holds the Providers of several configs over one Storage. Each
// config's state is kept under its own config id.
type Client struct {
	providers map[string]*Provider
	order     []string
	logger    hclog.Logger
	events    EventPublisher
}

// NewClient creates a Provider for every config. A config without an id
// gets "<index>-<clientId>". Every invalid config is reported, and config
// ids must be unique.
// Supported options: the options of NewProvider.
func NewClient(configs []*Config, s Storage, opt ...Option) (*Client, error) {
	const op = "oidc.NewClient"
	if len(configs) == 0 {
		return nil, fmt.Errorf("%s: no configs: %w", op, ErrInvalidParameter)
	}
	opts := getProviderOpts(opt...)
	c := &Client{
		providers: make(map[string]*Provider, len(configs)),
		logger:    opts.withLogger,
		events:    opts.withEventPublisher,
	}
	if c.logger == nil {
		c.logger = hclog.NewNullLogger()
	}
	if c.events == nil {
		c.events = noEvents{}
	}

	var errs *multierror.Error
	for i, cfg := range configs {
		if cfg == nil {
			errs = multierror.Append(errs, fmt.Errorf("config %d: %w", i, ErrNilParameter))
			continue
		}
		cfg = cfg.Clone()
		if cfg.ConfigID == "" {
			cfg.ConfigID = fmt.Sprintf("%d-%s", i, cfg.ClientID)
		}
		if _, dup := c.providers[cfg.ConfigID]; dup {
			errs = multierror.Append(errs, fmt.Errorf("config %d: %q: %w", i, cfg.ConfigID, ErrDuplicateConfigID))
			continue
		}
		p, err := NewProvider(cfg, s, opt...)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config %d: %w", i, err))
			continue
		}
		c.providers[cfg.ConfigID] = p
		c.order = append(c.order, cfg.ConfigID)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Provider returns the Provider of configID.
func (c *Client) Provider(configID string) (*Provider, error) {
	const op = "Client.Provider"
	p, ok := c.providers[configID]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, configID, ErrUnknownConfig)
	}
	return p, nil
}

// Providers returns the Providers in config order.
func (c *Client) Providers() []*Provider {
	ps := make([]*Provider, 0, len(c.order))
	for _, id := range c.order {
		ps = append(ps, c.providers[id])
	}
	return ps
}

// ConfigIDs returns the config ids in config order.
func (c *Client) ConfigIDs() []string {
	return append([]string(nil), c.order...)
}

// LoadConfigs runs discovery for every config concurrently and publishes
// EventConfigLoaded for each that succeeded. Every failure is returned.
func (c *Client) LoadConfigs(ctx context.Context) error {
	const op = "Client.LoadConfigs"
	var g multierror.Group
	for _, p := range c.Providers() {
		p := p
		g.Go(func() error {
			if _, err := p.Discover(ctx); err != nil {
				return err
			}
			p.publish(EventConfigLoaded, p.Config())
			return nil
		})
	}
	if err := g.Wait().ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckAuthMultiple reports the authentication state of every config and
// publishes EventCheckingAuthFinished.
func (c *Client) CheckAuthMultiple(ctx context.Context) (map[string]bool, error) {
	const op = "Client.CheckAuthMultiple"
	out := make(map[string]bool, len(c.order))
	var errs *multierror.Error
	for _, p := range c.Providers() {
		ok, err := p.IsAuthenticated(ctx)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		out[p.ConfigID()] = ok
	}
	c.events.Publish(Event{Type: EventCheckingAuthFinished, Value: out})
	if err := errs.ErrorOrNil(); err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// LogoffLocalMultiple clears the local data of every config. Every config
// is attempted and every failure is returned.
func (c *Client) LogoffLocalMultiple(ctx context.Context) error {
	const op = "Client.LogoffLocalMultiple"
	var errs *multierror.Error
	for _, p := range c.Providers() {
		if err := p.LogoffLocal(ctx); err != nil {
			c.logger.Error("local logoff failed", "config_id", p.ConfigID(), "error", err)
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
