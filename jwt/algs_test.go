// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportedSigningAlgorithm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		algs    []Alg
		wantErr bool
	}{
		{
			name: "supported signing algorithms",
			algs: []Alg{RS256, RS384, RS512, ES256, ES384, ES512, PS256, PS384, PS512},
		},
		{
			name:    "unsupported signing algorithm none",
			algs:    []Alg{Alg("none")},
			wantErr: true,
		},
		{
			name:    "symmetric algorithms are not supported",
			algs:    []Alg{RS256, Alg("HS256")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := SupportedSigningAlgorithm(tt.algs...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedAlg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAlgorithmParams(t *testing.T) {
	t.Parallel()
	tests := []struct {
		alg  Alg
		want AlgParams
	}{
		{alg: RS256, want: AlgParams{KeyType: KeyTypeRSA, Hash: crypto.SHA256}},
		{alg: RS384, want: AlgParams{KeyType: KeyTypeRSA, Hash: crypto.SHA384}},
		{alg: RS512, want: AlgParams{KeyType: KeyTypeRSA, Hash: crypto.SHA512}},
		{alg: PS256, want: AlgParams{KeyType: KeyTypeRSA, Hash: crypto.SHA256, PSS: true}},
		{alg: PS384, want: AlgParams{KeyType: KeyTypeRSA, Hash: crypto.SHA384, PSS: true}},
		{alg: PS512, want: AlgParams{KeyType: KeyTypeRSA, Hash: crypto.SHA512, PSS: true}},
		{alg: ES256, want: AlgParams{KeyType: KeyTypeEC, Hash: crypto.SHA256, Curve: "P-256"}},
		{alg: ES384, want: AlgParams{KeyType: KeyTypeEC, Hash: crypto.SHA384, Curve: "P-384"}},
		{alg: ES512, want: AlgParams{KeyType: KeyTypeEC, Hash: crypto.SHA512, Curve: "P-521"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.alg), func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := AlgorithmParams(tt.alg)
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		_, err := AlgorithmParams("EdDSA")
		require.ErrorIs(t, err, ErrUnsupportedAlg)
	})
}
