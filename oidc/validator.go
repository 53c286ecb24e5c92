// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/oidc-rp/jwt"
)

// ValidationReason tags why a token was rejected.
type ValidationReason string

const (
	ReasonOK                 ValidationReason = "Ok"
	ReasonMissingIDToken     ValidationReason = "MissingIdToken"
	ReasonMalformedToken     ValidationReason = "MalformedToken"
	ReasonUnsupportedAlg     ValidationReason = "UnsupportedAlg"
	ReasonNoSigningKeys      ValidationReason = "NoSigningKeys"
	ReasonNoMatchingKey      ValidationReason = "NoMatchingKey"
	ReasonSignatureInvalid   ValidationReason = "SignatureInvalid"
	ReasonIssuerMismatch     ValidationReason = "IssuerMismatch"
	ReasonAudienceMismatch   ValidationReason = "AudienceMismatch"
	ReasonAzpMissing         ValidationReason = "AzpMissing"
	ReasonAzpMismatch        ValidationReason = "AzpMismatch"
	ReasonMissingExpiry      ValidationReason = "MissingExpiry"
	ReasonExpired            ValidationReason = "Expired"
	ReasonNotYetValid        ValidationReason = "NotYetValid"
	ReasonIatInvalid         ValidationReason = "IatInvalid"
	ReasonNonceMismatch      ValidationReason = "NonceMismatch"
	ReasonAtHashMismatch     ValidationReason = "AtHashMismatch"
	ReasonRefreshMismatch    ValidationReason = "RefreshClaimsMismatch"
)

// IDTokenClaims are the id_token claims the validator checks.
type IDTokenClaims struct {
	josejwt.Claims
	Nonce           string `json:"nonce,omitempty"`
	AtHash          string `json:"at_hash,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	SessionID       string `json:"sid,omitempty"`
}

// ValidationResult is the structured outcome of a validation. A malformed
// or forged token is a result, never an error.
type ValidationResult struct {
	Valid  bool
	Reason ValidationReason
	Detail string

	// Claims and RawClaims are set when the signature was verified.
	Claims    *IDTokenClaims
	RawClaims map[string]interface{}
}

func invalid(reason ValidationReason, format string, args ...interface{}) *ValidationResult {
	return &ValidationResult{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	return &ValidationError{Result: r}
}

// ValidationInput is what one validation checks.
type ValidationInput struct {
	IDToken string

	// Nonce is the nonce created for the authorize request. It is not
	// checked when SkipNonce is set.
	Nonce     string
	SkipNonce bool

	// AccessToken is bound to the id_token through at_hash. The claim is
	// required when RequireAtHash is set and checked whenever present.
	AccessToken   string
	RequireAtHash bool

	// Previous are the claims of the id_token being replaced by a refresh.
	// iss, sub and aud must not change.
	Previous *IDTokenClaims
}

// validatorOptions is the set of available options for TokenValidator
type validatorOptions struct {
	withLogger hclog.Logger
	withNow    func() time.Time
}

func validatorDefaults() validatorOptions {
	return validatorOptions{withNow: time.Now}
}

func getValidatorOpts(opt ...Option) validatorOptions {
	opts := validatorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// TokenValidator validates id_tokens against a config, its discovered
// issuer and the provider's signing keys.
type TokenValidator struct {
	clientID     string
	issuer       string
	keys         []jwt.JSONWebKey
	skew         time.Duration
	maxIatOffset time.Duration
	checkIat     bool
	now          func() time.Time
	logger       hclog.Logger
}

// NewTokenValidator creates a TokenValidator.
// Supported options:
//
//	WithLogger
//	WithNow
func NewTokenValidator(c *Config, eps *Endpoints, keys *jwt.JSONWebKeySet, opt ...Option) *TokenValidator {
	opts := getValidatorOpts(opt...)
	v := &TokenValidator{
		clientID:     c.ClientID,
		skew:         time.Duration(c.ClockSkewInSeconds) * time.Second,
		maxIatOffset: time.Duration(c.MaxIDTokenIatOffsetAllowedInSeconds) * time.Second,
		checkIat:     !c.DisableIatOffsetValidation,
		now:          opts.withNow,
		logger:       opts.withLogger,
	}
	if v.maxIatOffset == 0 {
		v.maxIatOffset = DefaultMaxIatOffset
	}
	if eps != nil {
		v.issuer = eps.Issuer
	}
	if keys != nil {
		v.keys = keys.Keys
	}
	if v.logger == nil {
		v.logger = hclog.NewNullLogger()
	}
	return v
}

// Validate runs every check in order and stops at the first failure:
// signature, iss, aud, azp, exp, nbf, iat, nonce, at_hash and, for a
// refresh, the claims that must not change.
func (v *TokenValidator) Validate(ctx context.Context, in ValidationInput) *ValidationResult {
	r := v.validate(ctx, in)
	if !r.Valid {
		v.logger.Debug("token validation failed", "reason", r.Reason, "detail", r.Detail)
	}
	return r
}

func (v *TokenValidator) validate(ctx context.Context, in ValidationInput) *ValidationResult {
	if in.IDToken == "" {
		return invalid(ReasonMissingIDToken, "id_token is empty")
	}
	h, err := jwt.ParseHeader(in.IDToken)
	if err != nil {
		return invalid(ReasonMalformedToken, "%s", err)
	}
	params, err := jwt.AlgorithmParams(h.Algorithm)
	if err != nil {
		return invalid(ReasonUnsupportedAlg, "%s", h.Algorithm)
	}

	payload, r := v.verify(ctx, in.IDToken, h, params)
	if r != nil {
		return r
	}
	var claims IDTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return invalid(ReasonMalformedToken, "unable to decode claims: %s", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return invalid(ReasonMalformedToken, "unable to decode claims: %s", err)
	}

	now := v.now()
	if v.issuer == "" || claims.Issuer != v.issuer {
		return invalid(ReasonIssuerMismatch, "iss %q, expected %q", claims.Issuer, v.issuer)
	}
	if err := claims.ValidateWithLeeway(josejwt.Expected{AnyAudience: josejwt.Audience{v.clientID}, Time: now}, v.skew); err != nil {
		switch {
		case errors.Is(err, josejwt.ErrInvalidAudience):
			return invalid(ReasonAudienceMismatch, "aud %v does not contain %q", []string(claims.Audience), v.clientID)
		case errors.Is(err, josejwt.ErrExpired):
			return invalid(ReasonExpired, "expired at %s", claims.Expiry.Time().UTC())
		case errors.Is(err, josejwt.ErrNotValidYet):
			return invalid(ReasonNotYetValid, "not valid before %s", claims.NotBefore.Time().UTC())
		case errors.Is(err, josejwt.ErrIssuedInTheFuture):
			return invalid(ReasonIatInvalid, "issued in the future: %s", claims.IssuedAt.Time().UTC())
		default:
			return invalid(ReasonMalformedToken, "%s", err)
		}
	}
	if len(claims.Audience) > 1 && claims.AuthorizedParty == "" {
		return invalid(ReasonAzpMissing, "azp is required with %d audiences", len(claims.Audience))
	}
	if claims.AuthorizedParty != "" && claims.AuthorizedParty != v.clientID {
		return invalid(ReasonAzpMismatch, "azp %q, expected %q", claims.AuthorizedParty, v.clientID)
	}
	if claims.Expiry == nil {
		return invalid(ReasonMissingExpiry, "exp is required")
	}
	if v.checkIat {
		if claims.IssuedAt == nil {
			return invalid(ReasonIatInvalid, "iat is required")
		}
		if age := now.Sub(claims.IssuedAt.Time()); age > v.maxIatOffset+v.skew {
			return invalid(ReasonIatInvalid, "issued %s ago, max %s", age.Round(time.Second), v.maxIatOffset)
		}
	}
	if !in.SkipNonce && (in.Nonce == "" || claims.Nonce != in.Nonce) {
		return invalid(ReasonNonceMismatch, "nonce does not match")
	}
	if in.AccessToken != "" && (in.RequireAtHash || claims.AtHash != "") {
		want, err := TokenHash(in.AccessToken, h.Algorithm)
		if err != nil {
			return invalid(ReasonAtHashMismatch, "%s", err)
		}
		if claims.AtHash != want {
			return invalid(ReasonAtHashMismatch, "at_hash does not match the access token")
		}
	}
	if prev := in.Previous; prev != nil {
		switch {
		case prev.Issuer != claims.Issuer:
			return invalid(ReasonRefreshMismatch, "iss changed")
		case prev.Subject != claims.Subject:
			return invalid(ReasonRefreshMismatch, "sub changed")
		case !sameAudience(prev.Audience, claims.Audience):
			return invalid(ReasonRefreshMismatch, "aud changed")
		}
	}
	return &ValidationResult{Valid: true, Reason: ReasonOK, Claims: &claims, RawClaims: raw}
}

// verify selects the keys that can verify a token signed with h and tries
// them in order. A key without "use" is accepted, one with a use other than
// "sig" is not.
func (v *TokenValidator) verify(ctx context.Context, token string, h jwt.Header, params jwt.AlgParams) ([]byte, *ValidationResult) {
	found, err := jwt.SelectKeys(v.keys, &jwt.KeySpec{KeyID: h.KeyID, KeyType: params.KeyType}, jwt.WithAllowEmpty())
	if err != nil {
		return nil, invalid(ReasonNoSigningKeys, "%s", err)
	}
	var lastErr error
	tried := 0
	for _, k := range found {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		tried++
		payload, err := jwt.VerifySignature(ctx, token, k)
		if err == nil {
			return payload, nil
		}
		lastErr = err
	}
	if tried == 0 {
		return nil, invalid(ReasonNoMatchingKey, "no signing key for kid %q and kty %q", h.KeyID, params.KeyType)
	}
	return nil, invalid(ReasonSignatureInvalid, "%s", lastErr)
}

func sameAudience(a, b josejwt.Audience) bool {
	if len(a) != len(b) {
		return false
	}
	for _, s := range a {
		if !strutil.StrListContains(b, s) {
			return false
		}
	}
	return true
}
