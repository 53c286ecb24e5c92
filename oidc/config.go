// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultWellKnownSuffix is appended to the well-known endpoint url
	// unless the url already contains it.
	DefaultWellKnownSuffix = "/.well-known/openid-configuration"

	// DefaultScope is requested when a config has no scope.
	DefaultScope = "openid email profile"

	// DefaultSilentRenewTimeout is how long a silent renew may run before
	// it is considered stale.
	DefaultSilentRenewTimeout = 20 * time.Second

	// DefaultMaxIatOffset is the maximum age of an id_token's iat claim.
	DefaultMaxIatOffset = 120 * time.Second
)

// Response types.
const (
	ResponseTypeCode         = "code"
	ResponseTypeIDTokenToken = "id_token token"
	ResponseTypeIDToken      = "id_token"
)

// Config is the configuration of one provider. It is identified by ConfigID
// everywhere, and must not change once a Provider has been created for it.
type Config struct {
	// ConfigID uniquely identifies the config. All stored state is scoped
	// by it.
	ConfigID string `json:"configId" yaml:"configId" validate:"required"`

	// Authority is the provider's issuer url.
	Authority string `json:"authority" yaml:"authority" validate:"required,url"`

	// ClientID is the relying party's client id.
	ClientID string `json:"clientId" yaml:"clientId" validate:"required"`

	// RedirectURL is where the provider redirects after authentication.
	RedirectURL string `json:"redirectUrl,omitempty" yaml:"redirectUrl,omitempty" validate:"omitempty,url"`

	// PostLogoutRedirectURI is where the provider redirects after logoff.
	PostLogoutRedirectURI string `json:"postLogoutRedirectUri,omitempty" yaml:"postLogoutRedirectUri,omitempty" validate:"omitempty,url"`

	// Scope is the space separated list of requested scopes.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`

	// ResponseType is "code" for the code flow, "id_token token" or
	// "id_token" for the implicit flow.
	ResponseType string `json:"responseType,omitempty" yaml:"responseType,omitempty" validate:"omitempty,oneof=code 'id_token token' id_token"`

	SilentRenew    bool   `json:"silentRenew,omitempty" yaml:"silentRenew,omitempty"`
	SilentRenewURL string `json:"silentRenewUrl,omitempty" yaml:"silentRenewUrl,omitempty" validate:"omitempty,url"`

	// SilentRenewTimeoutInSeconds is how long a running silent renew blocks
	// a new one.
	SilentRenewTimeoutInSeconds int `json:"silentRenewTimeoutInSeconds,omitempty" yaml:"silentRenewTimeoutInSeconds,omitempty" validate:"gte=0"`

	UseRefreshToken                bool `json:"useRefreshToken,omitempty" yaml:"useRefreshToken,omitempty"`
	DisablePKCE                    bool `json:"disablePkce,omitempty" yaml:"disablePkce,omitempty"`
	UsePushedAuthorisationRequests bool `json:"usePushedAuthorisationRequests,omitempty" yaml:"usePushedAuthorisationRequests,omitempty"`

	// AuthWellknownEndpointURL is where discovery starts. It defaults to
	// Authority.
	AuthWellknownEndpointURL string `json:"authWellknownEndpointUrl,omitempty" yaml:"authWellknownEndpointUrl,omitempty"`
	AuthWellknownURLSuffix   string `json:"authWellknownUrlSuffix,omitempty" yaml:"authWellknownUrlSuffix,omitempty"`

	// AuthWellknownEndpoints override discovered endpoints field by field.
	AuthWellknownEndpoints *Endpoints `json:"authWellknownEndpoints,omitempty" yaml:"authWellknownEndpoints,omitempty"`

	CustomParamsAuthRequest         Params `json:"customParamsAuthRequest,omitempty" yaml:"customParamsAuthRequest,omitempty"`
	CustomParamsCodeRequest         Params `json:"customParamsCodeRequest,omitempty" yaml:"customParamsCodeRequest,omitempty"`
	CustomParamsRefreshTokenRequest Params `json:"customParamsRefreshTokenRequest,omitempty" yaml:"customParamsRefreshTokenRequest,omitempty"`
	CustomParamsEndSessionRequest   Params `json:"customParamsEndSessionRequest,omitempty" yaml:"customParamsEndSessionRequest,omitempty"`

	// RenewUserInfoAfterTokenRenew fetches userinfo again after a renew.
	RenewUserInfoAfterTokenRenew bool `json:"renewUserInfoAfterTokenRenew,omitempty" yaml:"renewUserInfoAfterTokenRenew,omitempty"`

	// AutoUserInfo fetches userinfo after every successful authentication.
	AutoUserInfo bool `json:"autoUserInfo,omitempty" yaml:"autoUserInfo,omitempty"`

	// HDParam is sent as the hd parameter (google hosted domain).
	HDParam string `json:"hdParam,omitempty" yaml:"hdParam,omitempty"`

	// NgswBypass adds the service worker bypass parameter to GET requests.
	NgswBypass bool `json:"ngswBypass,omitempty" yaml:"ngswBypass,omitempty"`

	MaxIDTokenIatOffsetAllowedInSeconds int  `json:"maxIdTokenIatOffsetAllowedInSeconds,omitempty" yaml:"maxIdTokenIatOffsetAllowedInSeconds,omitempty" validate:"gte=0"`
	DisableIatOffsetValidation          bool `json:"disableIatOffsetValidation,omitempty" yaml:"disableIatOffsetValidation,omitempty"`

	// ClockSkewInSeconds is the leeway used for exp, nbf and iat; zero checks them strictly.
	ClockSkewInSeconds int `json:"clockSkewInSeconds,omitempty" yaml:"clockSkewInSeconds,omitempty" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ApplyDefaults fills in the defaults of unset fields.
func (c *Config) ApplyDefaults() {
	if c.AuthWellknownEndpointURL == "" {
		c.AuthWellknownEndpointURL = c.Authority
	}
	if c.AuthWellknownURLSuffix == "" {
		c.AuthWellknownURLSuffix = DefaultWellKnownSuffix
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.ResponseType == "" {
		c.ResponseType = ResponseTypeCode
	}
	if c.SilentRenewTimeoutInSeconds == 0 {
		c.SilentRenewTimeoutInSeconds = int(DefaultSilentRenewTimeout / time.Second)
	}
	if c.MaxIDTokenIatOffsetAllowedInSeconds == 0 {
		c.MaxIDTokenIatOffsetAllowedInSeconds = int(DefaultMaxIatOffset / time.Second)
	}
}

// Validate the config.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrConfig, err)
	}
	if c.SilentRenew && !c.UseRefreshToken && c.SilentRenewURL == "" {
		return fmt.Errorf("%s: silent renew without refresh tokens requires silentRenewUrl: %w", op, ErrConfig)
	}
	return nil
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if c.AuthWellknownEndpoints != nil {
		eps := *c.AuthWellknownEndpoints
		cp.AuthWellknownEndpoints = &eps
	}
	cp.CustomParamsAuthRequest = append(Params(nil), c.CustomParamsAuthRequest...)
	cp.CustomParamsCodeRequest = append(Params(nil), c.CustomParamsCodeRequest...)
	cp.CustomParamsRefreshTokenRequest = append(Params(nil), c.CustomParamsRefreshTokenRequest...)
	cp.CustomParamsEndSessionRequest = append(Params(nil), c.CustomParamsEndSessionRequest...)
	return &cp
}

// IsCodeFlow reports whether the config uses the authorization code flow.
func (c *Config) IsCodeFlow() bool {
	return c.ResponseType == ResponseTypeCode
}

// IsImplicitFlow reports whether the config uses the implicit flow.
func (c *Config) IsImplicitFlow() bool {
	return c.ResponseType == ResponseTypeIDTokenToken || c.ResponseType == ResponseTypeIDToken
}

// SilentRenewTimeout returns SilentRenewTimeoutInSeconds as a duration.
func (c *Config) SilentRenewTimeout() time.Duration {
	return time.Duration(c.SilentRenewTimeoutInSeconds) * time.Second
}

// redirectTarget is the redirect uri of the current request: the silent
// renew url while renewing, the redirect url otherwise.
func (c *Config) redirectTarget(renew bool) string {
	if renew {
		return c.SilentRenewURL
	}
	return c.RedirectURL
}
