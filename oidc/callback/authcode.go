// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/oidc-rp/oidc"
)

// AuthCode creates an oidc authorization code callback handler which uses a
// ProviderReader to find the provider of the request, and runs the
// provider's code callback on the request's query (or posted form).
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails.
func AuthCode(ctx context.Context, r ProviderReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case r == nil:
		return nil, fmt.Errorf("%s: provider reader is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		const op = "callback.AuthCode"
		reqState := req.FormValue("state")

		p, err := r.Read(ctx, req)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: unable to read provider: %w", op, err), w, req)
			return
		}
		query, err := requestParams(req)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		cb, err := p.HandleCodeCallback(ctx, "?"+query)
		respond(reqState, cb, err, sFn, eFn, w, req)
	}, nil
}

// requestParams returns the callback parameters of req: the posted form for
// a form_post response, the query otherwise.
func requestParams(req *http.Request) (string, error) {
	if req.Method != http.MethodPost {
		return req.URL.RawQuery, nil
	}
	if err := req.ParseForm(); err != nil {
		return "", fmt.Errorf("unable to parse form: %w: %w", oidc.ErrMissingCallbackParam, err)
	}
	return req.PostForm.Encode(), nil
}
