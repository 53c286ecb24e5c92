// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package callback turns the redirect back from an OIDC provider into an
// http.HandlerFunc.
//
// AuthCode runs a provider's code callback (state check, code exchange with
// the stored PKCE verifier, token validation, persistence) and Implicit runs
// the implicit callback, reading the tokens from a form_post body or the
// query. Both find the oidc.Provider of a request through a ProviderReader:
// SingleProviderReader for one config, ClientProviderReader to pick one of
// an oidc.Client's providers by a request parameter.
//
// The flow state lives in the provider's storage, so the handlers hold no
// state of their own. The outcome is written by the caller's
// SuccessResponseFunc, which receives the completed oidc.CallbackContext,
// or ErrorResponseFunc, which receives either the provider's
// AuthenErrorResponse or the callback error.
package callback
