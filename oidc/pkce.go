// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/oidc-rp/jwt"
	"golang.org/x/oauth2"
)

// CodeChallenge returns the S256 pkce challenge of verifier:
// base64url(SHA-256(verifier)) without padding.
func CodeChallenge(verifier string) (string, error) {
	const op = "oidc.CodeChallenge"
	if !crypto.SHA256.Available() {
		return "", fmt.Errorf("%s: sha256: %w", op, ErrHashUnavailable)
	}
	return oauth2.S256ChallengeFromVerifier(verifier), nil
}

// TokenHash computes an at_hash or c_hash value: the left half of the
// token's digest, using the hash of the id_token's alg, base64url encoded.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#CodeIDToken
func TokenHash(token string, alg jwt.Alg) (string, error) {
	const op = "oidc.TokenHash"
	params, err := jwt.AlgorithmParams(alg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !params.Hash.Available() {
		return "", fmt.Errorf("%s: %s: %w", op, params.Hash, ErrHashUnavailable)
	}
	h := params.Hash.New()
	_, _ = h.Write([]byte(token))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}
