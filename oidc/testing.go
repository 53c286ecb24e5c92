// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/oidc-rp/jwt"
	"github.com/stretchr/testify/require"
)

// TestGenerateKeys will generate a test key pair for alg.
func TestGenerateKeys(t *testing.T, alg jwt.Alg) (crypto.PublicKey, crypto.Signer) {
	t.Helper()
	require := require.New(t)
	params, err := jwt.AlgorithmParams(alg)
	require.NoError(err)

	switch params.KeyType {
	case jwt.KeyTypeRSA:
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(err)
		return priv.Public(), priv
	default:
		var curve elliptic.Curve
		switch alg {
		case jwt.ES384:
			curve = elliptic.P384()
		case jwt.ES512:
			curve = elliptic.P521()
		default:
			curve = elliptic.P256()
		}
		priv, err := ecdsa.GenerateKey(curve, rand.Reader)
		require.NoError(err)
		return priv.Public(), priv
	}
}

// TestSignJWT will bundle the provided claims into a test signed JWT. The
// kid header is only set when kid is not empty.
func TestSignJWT(t *testing.T, priv crypto.Signer, alg jwt.Alg, kid string, claims interface{}) string {
	t.Helper()
	require := require.New(t)

	opts := (&jose.SignerOptions{}).WithType("JWT")
	if kid != "" {
		opts = opts.WithHeader("kid", kid)
	}
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: priv}, opts)
	require.NoError(err)

	raw, err := josejwt.Signed(sig).Claims(claims).Serialize()
	require.NoError(err)
	return raw
}

// TestKeySet will create a key set holding pub.
func TestKeySet(t *testing.T, pub crypto.PublicKey, alg jwt.Alg, kid string) *jwt.JSONWebKeySet {
	t.Helper()
	k, err := jwt.NewJSONWebKey(pub, kid, alg, "sig")
	require.NoError(t, err)
	return &jwt.JSONWebKeySet{Keys: []jwt.JSONWebKey{k}}
}

// testIDTokenClaims are the claims of a valid id_token issued now.
func testIDTokenClaims(issuer, clientID, nonce string, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"iss":   issuer,
		"sub":   "alice@example.com",
		"aud":   clientID,
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
		"nonce": nonce,
	}
}
