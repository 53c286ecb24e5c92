// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/oidc-rp/jwt"
)

// CallbackStep is a state of the callback state machine.
type CallbackStep int

const (
	StepStart CallbackStep = iota
	StepParamsExtracted
	StepStateValidated
	StepCodeExchanged
	StepTokensValidated
	StepPersisted
	StepFailed
)

func (s CallbackStep) String() string {
	switch s {
	case StepStart:
		return "Start"
	case StepParamsExtracted:
		return "ParamsExtracted"
	case StepStateValidated:
		return "StateValidated"
	case StepCodeExchanged:
		return "CodeExchanged"
	case StepTokensValidated:
		return "TokensValidated"
	case StepPersisted:
		return "Persisted"
	case StepFailed:
		return "Failed"
	default:
		return fmt.Sprintf("CallbackStep(%d)", int(s))
	}
}

// CallbackContext records one callback cycle. It is returned populated up
// to the step that was reached; Step is StepPersisted on success and
// StepFailed otherwise, with FailedAt the last step that completed.
type CallbackContext struct {
	Code             string
	RefreshToken     string
	State            string
	SessionState     string
	AuthResult       *AuthResult
	IsRenewProcess   bool
	JWTKeys          *jwt.JSONWebKeySet
	ValidationResult *ValidationResult
	ExistingIDToken  string

	Step     CallbackStep
	FailedAt CallbackStep
}

func (c *CallbackContext) advance(s CallbackStep) { c.Step = s }

// authenticationError returns the error response carried by q, if any.
func authenticationError(q Params) error {
	code, ok := q.Get("error")
	if !ok {
		return nil
	}
	e := &AuthenticationError{Code: code}
	e.Description, _ = q.Get("error_description")
	e.URI, _ = q.Get("error_uri")
	e.State, _ = q.Get("state")
	return e
}

// HandleCodeCallback runs the code flow callback state machine on the url
// the provider redirected to:
//
//	Start -> ParamsExtracted -> StateValidated -> CodeExchanged ->
//	TokensValidated -> Persisted
//
// Any step may end in Failed. The state is checked against the stored csrf
// state before any request is made. The code exchange is retried on
// transport failures only. On failure the code flow in progress and silent
// renew flags are cleared.
// Supported options:
//
//	WithCustomParams
func (p *Provider) HandleCodeCallback(ctx context.Context, callbackURL string, opt ...Option) (*CallbackContext, error) {
	const op = "Provider.HandleCodeCallback"
	opts := getRequestOpts(opt...)
	cb := &CallbackContext{Step: StepStart}

	renew, err := p.silentRenew.IsRunning(ctx)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.IsRenewProcess = renew

	u, err := url.Parse(callbackURL)
	if err != nil {
		return p.failCallback(ctx, op, cb, fmt.Errorf("%w: %w", ErrMissingCallbackParam, err))
	}
	q, err := ParseParams(u.RawQuery)
	if err != nil {
		return p.failCallback(ctx, op, cb, fmt.Errorf("%w: %w", ErrMissingCallbackParam, err))
	}
	if err := authenticationError(q); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.Code, _ = q.Get("code")
	cb.State, _ = q.Get("state")
	cb.SessionState, _ = q.Get("session_state")
	switch {
	case cb.State == "":
		return p.failCallback(ctx, op, cb, fmt.Errorf("state: %w", ErrMissingCallbackParam))
	case cb.Code == "":
		return p.failCallback(ctx, op, cb, fmt.Errorf("code: %w", ErrMissingCallbackParam))
	}
	cb.advance(StepParamsExtracted)

	if err := p.validateCallbackState(ctx, cb); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.advance(StepStateValidated)

	eps, ok, err := p.CachedEndpoints(ctx)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	if !ok || eps.TokenEndpoint == "" {
		return p.failCallback(ctx, op, cb, ErrMissingTokenEndpoint)
	}
	verifier, err := p.flow.CodeVerifier(ctx)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	body, err := p.builder(eps).codeExchangeBody(cb.Code, verifier, renew, opts.withCustomParams)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	resp, err := retry(ctx, p.logger, retryTransport, func() ([]byte, error) {
		return p.client.Post(ctx, eps.TokenEndpoint, body, formRequest())
	})
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	if cb.AuthResult, err = parseTokenResponse(resp, p.now()); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.RefreshToken = string(cb.AuthResult.RefreshToken)
	cb.advance(StepCodeExchanged)

	if err := p.validateCallbackTokens(ctx, cb, eps, false); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.advance(StepTokensValidated)

	if err := p.persistCallback(ctx, cb); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.advance(StepPersisted)
	return cb, nil
}

// HandleImplicitCallback runs the implicit flow callback state machine on
// the fragment the provider redirected with (with or without the leading
// "#"). There is no code exchange: the tokens come from the fragment and the
// access token is bound to the id_token through at_hash.
func (p *Provider) HandleImplicitCallback(ctx context.Context, fragment string) (*CallbackContext, error) {
	const op = "Provider.HandleImplicitCallback"
	cb := &CallbackContext{Step: StepStart}

	renew, err := p.silentRenew.IsRunning(ctx)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.IsRenewProcess = renew

	if i := strings.IndexByte(fragment, '#'); i >= 0 {
		fragment = fragment[i+1:]
	}
	q, err := ParseParams(fragment)
	if err != nil {
		return p.failCallback(ctx, op, cb, fmt.Errorf("%w: %w", ErrMissingCallbackParam, err))
	}
	if err := authenticationError(q); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.State, _ = q.Get("state")
	cb.SessionState, _ = q.Get("session_state")
	tr := tokenResponse{State: cb.State, SessionState: cb.SessionState}
	tr.AccessToken, _ = q.Get("access_token")
	tr.IDToken, _ = q.Get("id_token")
	tr.TokenType, _ = q.Get("token_type")
	tr.Scope, _ = q.Get("scope")
	if v, ok := q.Get("expires_in"); ok {
		if err := tr.ExpiresIn.UnmarshalJSON([]byte(`"` + v + `"`)); err != nil {
			return p.failCallback(ctx, op, cb, fmt.Errorf("%w: %w", ErrMissingCallbackParam, err))
		}
	}
	switch {
	case cb.State == "":
		return p.failCallback(ctx, op, cb, fmt.Errorf("state: %w", ErrMissingCallbackParam))
	case tr.IDToken == "":
		return p.failCallback(ctx, op, cb, fmt.Errorf("id_token: %w", ErrMissingCallbackParam))
	case p.config.ResponseType == ResponseTypeIDTokenToken && tr.AccessToken == "":
		return p.failCallback(ctx, op, cb, fmt.Errorf("access_token: %w", ErrMissingCallbackParam))
	}
	cb.AuthResult = tr.authResult(p.now())
	cb.advance(StepParamsExtracted)

	if err := p.validateCallbackState(ctx, cb); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.advance(StepStateValidated)

	eps, ok, err := p.CachedEndpoints(ctx)
	if err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	if !ok {
		return p.failCallback(ctx, op, cb, ErrMissingJWKSURI)
	}
	if err := p.validateCallbackTokens(ctx, cb, eps, true); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.advance(StepTokensValidated)

	if err := p.persistCallback(ctx, cb); err != nil {
		return p.failCallback(ctx, op, cb, err)
	}
	cb.advance(StepPersisted)
	return cb, nil
}

// validateCallbackState consumes the stored csrf state when it matches.
func (p *Provider) validateCallbackState(ctx context.Context, cb *CallbackContext) error {
	ok, err := p.flow.ConsumeAuthStateControl(ctx, cb.State)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateMismatch
	}
	if cb.SessionState != "" {
		return p.flow.SetSessionState(ctx, cb.SessionState)
	}
	return nil
}

// validateCallbackTokens fetches the signing keys and validates the
// id_token against the stored nonce.
func (p *Provider) validateCallbackTokens(ctx context.Context, cb *CallbackContext, eps *Endpoints, requireAtHash bool) error {
	keys, err := p.SigningKeys(ctx)
	if err != nil {
		return err
	}
	cb.JWTKeys = keys
	nonce, err := p.flow.Nonce(ctx)
	if err != nil {
		return err
	}
	v := NewTokenValidator(p.config, eps, keys, WithNow(p.now), WithLogger(p.logger))
	cb.ValidationResult = v.Validate(ctx, ValidationInput{
		IDToken:       string(cb.AuthResult.IDToken),
		Nonce:         nonce,
		AccessToken:   string(cb.AuthResult.AccessToken),
		RequireAtHash: requireAtHash && cb.AuthResult.AccessToken != "",
	})
	return cb.ValidationResult.Err()
}

// persistCallback stores the user data, the tokens and clears the values of
// the completed attempt. The user data comes first so a userinfo failure
// leaves no tokens behind.
func (p *Provider) persistCallback(ctx context.Context, cb *CallbackContext) error {
	if err := p.refreshUserData(ctx, cb); err != nil {
		return err
	}
	if err := p.storeAuthResult(ctx, cb.AuthResult); err != nil {
		return err
	}
	if err := p.flow.reset(ctx); err != nil {
		return err
	}
	if err := p.flow.ResetCodeFlowInProgress(ctx); err != nil {
		return err
	}
	if cb.IsRenewProcess {
		if err := p.silentRenew.Reset(ctx); err != nil {
			return err
		}
	}
	p.publish(EventNewAuthenticationResult, &AuthenticationResult{
		IsAuthenticated: true,
		IsRenewProcess:  cb.IsRenewProcess,
		Reason:          ReasonOK,
	})
	return nil
}

// refreshUserData stores the userinfo response when the config asks for it,
// and the id_token claims otherwise. Renewals keep the existing user data
// unless renewUserInfoAfterTokenRenew is set.
func (p *Provider) refreshUserData(ctx context.Context, cb *CallbackContext) error {
	if cb.IsRenewProcess && !p.config.RenewUserInfoAfterTokenRenew {
		return nil
	}
	var claims *IDTokenClaims
	var raw map[string]interface{}
	if cb.ValidationResult != nil {
		claims, raw = cb.ValidationResult.Claims, cb.ValidationResult.RawClaims
	}
	if p.config.AutoUserInfo {
		_, err := p.userInfo(ctx, cb.AuthResult.AccessToken, claims)
		return err
	}
	if raw == nil {
		return nil
	}
	return p.storeUserData(ctx, raw)
}

func (p *Provider) failCallback(ctx context.Context, op string, cb *CallbackContext, err error) (*CallbackContext, error) {
	cb.FailedAt = cb.Step
	cb.Step = StepFailed
	p.logger.Error("callback failed", "step", cb.FailedAt, "error", err)
	if rerr := p.flow.ResetCodeFlowInProgress(ctx); rerr != nil {
		p.logger.Error("unable to reset code flow in progress", "error", rerr)
	}
	if rerr := p.silentRenew.Reset(ctx); rerr != nil {
		p.logger.Error("unable to reset silent renew flag", "error", rerr)
	}
	result := &AuthenticationResult{IsRenewProcess: cb.IsRenewProcess}
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Result != nil {
		result.Reason = verr.Result.Reason
	}
	p.publish(EventNewAuthenticationResult, result)
	if cb.IsRenewProcess {
		p.publish(EventSilentRenewFailed, err)
	}
	return cb, fmt.Errorf("%s: %w", op, err)
}
