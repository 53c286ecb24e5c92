// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"net/http"

	"github.com/hashicorp/oidc-rp/oidc"
)

// SuccessResponseFunc is used by Callbacks to create a http response when the
// callback is successful.
//
// The function state parameter will contain the state that was returned as
// part of a successful oidc authentication response. The CallbackContext is
// the completed callback, holding the validated tokens. The function should
// use the http.ResponseWriter to send back whatever content (headers, html,
// JSON, etc) it wishes to the client that originated the oidc flow.
type SuccessResponseFunc func(state string, cb *oidc.CallbackContext, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Callbacks to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response. It gets the oidc authentication error response when the provider
// sent one, and the callback error otherwise. The function should use the
// http.ResponseWriter to send back whatever content (headers, html, JSON,
// etc) it wishes to the client that originated the oidc flow.
type ErrorResponseFunc func(state string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Uri         string `json:"error_uri,omitempty"`
}

// respond calls sFn when err is nil and eFn otherwise. An authentication
// error response from the provider is passed as an AuthenErrorResponse.
func respond(state string, cb *oidc.CallbackContext, err error, sFn SuccessResponseFunc, eFn ErrorResponseFunc, w http.ResponseWriter, req *http.Request) {
	if err == nil {
		sFn(state, cb, w, req)
		return
	}
	var authErr *oidc.AuthenticationError
	if errors.As(err, &authErr) {
		eFn(state, &AuthenErrorResponse{
			Error:       authErr.Code,
			Description: authErr.Description,
			Uri:         authErr.URI,
		}, nil, w, req)
		return
	}
	eFn(state, nil, err, w, req)
}
