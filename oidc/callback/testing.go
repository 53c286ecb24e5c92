// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hashicorp/oidc-rp/oidc"
	"github.com/hashicorp/oidc-rp/storage/memory"
	"github.com/stretchr/testify/require"
)

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(state string, cb *oidc.CallbackContext, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful"))
}

// testFailFn is a test ErrorResponseFunc
func testFailFn(state string, r *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
	if e != nil {
		w.WriteHeader(http.StatusInternalServerError)
		j, _ := json.Marshal(&AuthenErrorResponse{
			Error:       "internal-callback-error",
			Description: e.Error(),
		})
		_, _ = w.Write(j)
		return
	}
	if r != nil {
		w.WriteHeader(http.StatusUnauthorized)
		j, _ := json.Marshal(r)
		_, _ = w.Write(j)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	j, _ := json.Marshal(&AuthenErrorResponse{
		Error: "unknown-callback-error",
	})
	_, _ = w.Write(j)
}

// testNewProvider creates a new Provider for the TestProvider (tp). The
// config can be adjusted with fn before the provider is created. This is
// helpful internally, but intentionally not exported.
func testNewProvider(t *testing.T, tp *oidc.TestProvider, fn func(*oidc.Config)) *oidc.Provider {
	t.Helper()
	c := tp.Config()
	if fn != nil {
		fn(c)
	}
	p, err := oidc.NewProvider(c, testStorage(), oidc.WithHTTPClient(tp.HTTPClient()))
	require.NoError(t, err)
	return p
}

func testStorage() oidc.Storage { return memory.New() }
