// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/oidc-rp/oidc"
)

// Implicit creates an oidc implicit flow callback handler which uses a
// ProviderReader to find the provider of the request, and runs the
// provider's implicit callback. The fragment never reaches a server, so the
// user agent must post it (response_mode=form_post) or send it as the query.
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails.
func Implicit(ctx context.Context, r ProviderReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Implicit"
	switch {
	case r == nil:
		return nil, fmt.Errorf("%s: provider reader is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		const op = "callback.Implicit"
		reqState := req.FormValue("state")

		p, err := r.Read(ctx, req)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: unable to read provider: %w", op, err), w, req)
			return
		}
		fragment, err := requestParams(req)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		cb, err := p.HandleImplicitCallback(ctx, fragment)
		respond(reqState, cb, err, sFn, eFn, w, req)
	}, nil
}
