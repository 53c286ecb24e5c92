// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// Alg represents asymmetric signing algorithms
type Alg string

const (
	// JOSE asymmetric signing algorithm values as defined by RFC 7518.
	//
	// See: https://tools.ietf.org/html/rfc7518#section-3.1
	RS256 Alg = "RS256" // RSASSA-PKCS-v1.5 using SHA-256
	RS384 Alg = "RS384" // RSASSA-PKCS-v1.5 using SHA-384
	RS512 Alg = "RS512" // RSASSA-PKCS-v1.5 using SHA-512
	ES256 Alg = "ES256" // ECDSA using P-256 and SHA-256
	ES384 Alg = "ES384" // ECDSA using P-384 and SHA-384
	ES512 Alg = "ES512" // ECDSA using P-521 and SHA-512
	PS256 Alg = "PS256" // RSASSA-PSS using SHA256 and MGF1-SHA256
	PS384 Alg = "PS384" // RSASSA-PSS using SHA384 and MGF1-SHA384
	PS512 Alg = "PS512" // RSASSA-PSS using SHA512 and MGF1-SHA512
)

// Key types as they appear in a jwk "kty" member.
const (
	KeyTypeRSA = "RSA"
	KeyTypeEC  = "EC"
)

// AlgParams are the verification parameters for an Alg.
type AlgParams struct {
	// KeyType is the jwk "kty" a verification key must have.
	KeyType string

	// Hash is the digest used by the signature, and by at_hash / c_hash.
	Hash crypto.Hash

	// Curve is the required named curve for ECDSA algorithms.
	Curve string

	// PSS is true for RSASSA-PSS.
	PSS bool
}

var supportedAlgorithms = map[Alg]AlgParams{
	RS256: {KeyType: KeyTypeRSA, Hash: crypto.SHA256},
	RS384: {KeyType: KeyTypeRSA, Hash: crypto.SHA384},
	RS512: {KeyType: KeyTypeRSA, Hash: crypto.SHA512},
	ES256: {KeyType: KeyTypeEC, Hash: crypto.SHA256, Curve: "P-256"},
	ES384: {KeyType: KeyTypeEC, Hash: crypto.SHA384, Curve: "P-384"},
	ES512: {KeyType: KeyTypeEC, Hash: crypto.SHA512, Curve: "P-521"},
	PS256: {KeyType: KeyTypeRSA, Hash: crypto.SHA256, PSS: true},
	PS384: {KeyType: KeyTypeRSA, Hash: crypto.SHA384, PSS: true},
	PS512: {KeyType: KeyTypeRSA, Hash: crypto.SHA512, PSS: true},
}

// joseAlgorithms is the allow list handed to go-jose when parsing.
var joseAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
}

// AlgorithmParams maps a JOSE alg to its verification parameters.
func AlgorithmParams(a Alg) (AlgParams, error) {
	const op = "jwt.AlgorithmParams"
	p, ok := supportedAlgorithms[a]
	if !ok {
		return AlgParams{}, fmt.Errorf("%s: %q: %w", op, a, ErrUnsupportedAlg)
	}
	return p, nil
}

// SupportedSigningAlgorithm returns an error if any of the given Algs
// are not supported signing algorithms.
func SupportedSigningAlgorithm(algs ...Alg) error {
	for _, a := range algs {
		if _, ok := supportedAlgorithms[a]; !ok {
			return fmt.Errorf("%q: %w", a, ErrUnsupportedAlg)
		}
	}
	return nil
}
