// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/hashicorp/oidc-rp/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeChallenge(t *testing.T) {
	t.Parallel()
	tests := []struct {
		verifier string
		want     string
	}{
		{verifier: "44445543344242132145455aaabbdc3b4", want: "R2TWD45Vtcf_kfAqjuE3LMSRF3JDE5fsFndnn6-a0nQ"},
		{verifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk", want: "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.verifier, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := CodeChallenge(tt.verifier)
			require.NoError(err)
			assert.Equal(tt.want, got)
			assert.NotContains(got, "=")
		})
	}
}

func TestTokenHash(t *testing.T) {
	t.Parallel()
	sum := sha256.Sum256([]byte("access-token"))
	want256 := base64.RawURLEncoding.EncodeToString(sum[:16])

	tests := []struct {
		name    string
		alg     jwt.Alg
		want    string
		wantLen int
		wantErr bool
	}{
		{name: "ES256", alg: jwt.ES256, want: want256},
		{name: "RS256", alg: jwt.RS256, want: want256},
		{name: "RS384", alg: jwt.RS384, wantLen: 32},
		{name: "ES512", alg: jwt.ES512, wantLen: 43},
		{name: "unsupported", alg: jwt.Alg("HS256"), wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := TokenHash("access-token", tt.alg)
			if tt.wantErr {
				require.Error(err)
				return
			}
			require.NoError(err)
			if tt.want != "" {
				assert.Equal(tt.want, got)
			}
			if tt.wantLen != 0 {
				assert.Len(got, tt.wantLen)
			}
		})
	}
}
