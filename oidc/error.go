// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"

	"github.com/hashicorp/oidc-rp/jwt"
	sdkhttp "github.com/hashicorp/oidc-rp/sdk/http"
)

// Error categories. Errors returned by this package match their category
// with errors.Is, in addition to their specific sentinel.
var (
	ErrConfig       = errors.New("configuration error")
	ErrDiscovery    = errors.New("discovery error")
	ErrKeySelection = jwt.ErrKeySelection
	ErrValidation   = errors.New("validation error")
	ErrTransport    = sdkhttp.ErrTransport
	ErrHTTPStatus   = sdkhttp.ErrHTTPStatus
)

var (
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrNilParameter              = errors.New("nil parameter")
	ErrIdGeneratorFailed         = errors.New("id generation failed")
	ErrHashUnavailable           = fmt.Errorf("%w: hash function unavailable", ErrConfig)
	ErrMissingWellKnownURL       = fmt.Errorf("%w: missing well-known endpoint url", ErrConfig)
	ErrMissingClientID           = fmt.Errorf("%w: missing client id", ErrConfig)
	ErrMissingRedirectURL        = fmt.Errorf("%w: missing redirect url", ErrConfig)
	ErrUnknownConfig             = fmt.Errorf("%w: unknown config id", ErrConfig)
	ErrMissingTokenEndpoint      = fmt.Errorf("%w: missing token endpoint", ErrConfig)
	ErrMissingJWKSURI            = fmt.Errorf("%w: missing jwks uri", ErrConfig)
	ErrMissingRevocationEndpoint = fmt.Errorf("%w: missing revocation endpoint", ErrConfig)
	ErrMissingUserInfoEndpoint   = fmt.Errorf("%w: missing userinfo endpoint", ErrConfig)
	ErrMissingPAREndpoint        = fmt.Errorf("%w: missing pushed authorization request endpoint", ErrConfig)
	ErrMissingRefreshToken       = fmt.Errorf("%w: missing refresh token", ErrConfig)
	ErrMissingCodeVerifier       = fmt.Errorf("%w: missing code verifier", ErrConfig)
	ErrMissingNavigator          = fmt.Errorf("%w: missing navigator", ErrConfig)
	ErrDuplicateConfigID         = fmt.Errorf("%w: duplicate config id", ErrConfig)
	ErrUnableToBuildURL          = fmt.Errorf("%w: unable to build url", ErrConfig)

	ErrDiscoveryFailed = fmt.Errorf("%w: unable to load well-known endpoints", ErrDiscovery)

	ErrMissingCallbackParam    = fmt.Errorf("%w: missing callback parameter", ErrValidation)
	ErrStateMismatch           = fmt.Errorf("%w: state does not match", ErrValidation)
	ErrTokenValidationFailed   = fmt.Errorf("%w: token validation failed", ErrValidation)
	ErrUserInfoSubjectMismatch = fmt.Errorf("%w: userinfo sub does not match id_token sub", ErrValidation)
	ErrNotAuthenticated        = fmt.Errorf("%w: not authenticated", ErrValidation)
	ErrInvalidPARResponse      = fmt.Errorf("%w: invalid pushed authorization response", ErrValidation)
	ErrAuthenticationResponse  = fmt.Errorf("%w: authentication error response", ErrValidation)

	ErrSilentRenewRunning = errors.New("silent renew already running")
)

// AuthenticationError is returned when the provider redirected back with an
// error response instead of a code or tokens.
type AuthenticationError struct {
	Code        string
	Description string
	URI         string
	State       string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrAuthenticationResponse, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrAuthenticationResponse, e.Code, e.Description)
}

// Is matches ErrAuthenticationResponse and its category.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationResponse || target == ErrValidation
}

// ValidationError carries the reason a token was rejected.
type ValidationError struct {
	Result *ValidationResult
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Result == nil {
		return ErrTokenValidationFailed.Error()
	}
	if e.Result.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrTokenValidationFailed, e.Result.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrTokenValidationFailed, e.Result.Reason, e.Result.Detail)
}

// Is matches ErrTokenValidationFailed and its category.
func (e *ValidationError) Is(target error) bool {
	return target == ErrTokenValidationFailed || target == ErrValidation
}
