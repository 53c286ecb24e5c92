// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
)

// JSONWebKey is a single key of a jwks document. The members used for key
// selection are decoded eagerly, the key material is kept as received and
// only parsed when a signature is verified.
type JSONWebKey struct {
	KeyID     string
	Use       string
	KeyType   string
	Algorithm string

	raw json.RawMessage
}

type jwkMetadata struct {
	KeyID     string `json:"kid,omitempty"`
	Use       string `json:"use,omitempty"`
	KeyType   string `json:"kty,omitempty"`
	Algorithm string `json:"alg,omitempty"`
}

// NewJSONWebKey creates a JSONWebKey from a public key.
func NewJSONWebKey(pub crypto.PublicKey, keyID string, alg Alg, use string) (JSONWebKey, error) {
	const op = "jwt.NewJSONWebKey"
	raw, err := (&jose.JSONWebKey{Key: pub, KeyID: keyID, Algorithm: string(alg), Use: use}).MarshalJSON()
	if err != nil {
		return JSONWebKey{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidKey, err)
	}
	var k JSONWebKey
	if err := k.UnmarshalJSON(raw); err != nil {
		return JSONWebKey{}, fmt.Errorf("%s: %w", op, err)
	}
	return k, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (k *JSONWebKey) UnmarshalJSON(b []byte) error {
	var m jwkMetadata
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	k.KeyID, k.Use, k.KeyType, k.Algorithm = m.KeyID, m.Use, m.KeyType, m.Algorithm
	k.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON implements json.Marshaler. The key is written back exactly as
// it was received.
func (k JSONWebKey) MarshalJSON() ([]byte, error) {
	if len(k.raw) > 0 {
		return k.raw, nil
	}
	return json.Marshal(jwkMetadata{KeyID: k.KeyID, Use: k.Use, KeyType: k.KeyType, Algorithm: k.Algorithm})
}

// PublicKey returns the key's *rsa.PublicKey or *ecdsa.PublicKey.
func (k JSONWebKey) PublicKey() (crypto.PublicKey, error) {
	const op = "JSONWebKey.PublicKey"
	if len(k.raw) == 0 {
		return nil, fmt.Errorf("%s: no key material: %w", op, ErrInvalidKey)
	}
	var jk jose.JSONWebKey
	if err := jk.UnmarshalJSON(k.raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidKey, err)
	}
	if !jk.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidKey)
	}
	if !jk.IsPublic() {
		jk = jk.Public()
	}
	return jk.Key, nil
}

// JSONWebKeySet is a jwks document.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// ParseKeySet decodes a jwks document.
func ParseKeySet(b []byte) (*JSONWebKeySet, error) {
	const op = "jwt.ParseKeySet"
	var ks JSONWebKeySet
	if err := json.Unmarshal(b, &ks); err != nil {
		return nil, fmt.Errorf("%s: unable to decode key set: %w", op, err)
	}
	return &ks, nil
}

// KeySpec narrows a key set. An empty member does not filter.
type KeySpec struct {
	KeyID   string
	Use     string
	KeyType string
}

// SelectKeys filters keys by spec. It never modifies keys.
//
// An empty keys slice is always an error. When nothing matches, an error is
// returned unless WithAllowEmpty is used. When spec is nil and keys holds more
// than one key the caller has to disambiguate, so ErrAmbiguousKeySet is
// returned. A non-nil spec that still matches several keys is accepted.
func SelectKeys(keys []JSONWebKey, spec *KeySpec, opt ...Option) ([]JSONWebKey, error) {
	const op = "jwt.SelectKeys"
	opts := getSelectOpts(opt...)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyKeySet)
	}
	if spec == nil {
		if len(keys) > 1 {
			return nil, fmt.Errorf("%s: %d keys: %w", op, len(keys), ErrAmbiguousKeySet)
		}
		return []JSONWebKey{keys[0]}, nil
	}
	var found []JSONWebKey
	for _, k := range keys {
		if spec.KeyID != "" && k.KeyID != spec.KeyID {
			continue
		}
		if spec.Use != "" && k.Use != spec.Use {
			continue
		}
		if spec.KeyType != "" && k.KeyType != spec.KeyType {
			continue
		}
		found = append(found, k)
	}
	if len(found) == 0 && !opts.withAllowEmpty {
		return nil, fmt.Errorf("%s: kid=%q use=%q kty=%q: %w", op, spec.KeyID, spec.Use, spec.KeyType, ErrNoMatchingKey)
	}
	return found, nil
}

// Header is the protected header of a compact JWS.
type Header struct {
	Algorithm Alg    `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
	Type      string `json:"typ,omitempty"`
}

// ParseHeader decodes the header of a compact JWS without verifying anything.
// It is parsed by hand so an unknown alg can be reported as such instead of
// being rejected as a parse error.
func ParseHeader(token string) (Header, error) {
	const op = "jwt.ParseHeader"
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Header{}, fmt.Errorf("%s: expected 3 parts, got %d: %w", op, len(parts), ErrMalformedToken)
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w: %w", op, ErrMalformedToken, err)
	}
	var h Header
	if err := json.Unmarshal(b, &h); err != nil {
		return Header{}, fmt.Errorf("%s: %w: %w", op, ErrMalformedToken, err)
	}
	if h.Algorithm == "" {
		return Header{}, fmt.Errorf("%s: missing alg: %w", op, ErrMalformedToken)
	}
	return h, nil
}

// VerifySignature verifies the token's signature with key, using the
// verification parameters of the token's alg, and returns the payload.
func VerifySignature(ctx context.Context, token string, key JSONWebKey) ([]byte, error) {
	const op = "jwt.VerifySignature"
	h, err := ParseHeader(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	params, err := AlgorithmParams(h.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if key.Algorithm != "" && Alg(key.Algorithm) != h.Algorithm {
		return nil, fmt.Errorf("%s: key alg %s, token alg %s: %w", op, key.Algorithm, h.Algorithm, ErrKeyAlgMismatch)
	}
	if key.KeyType != "" && key.KeyType != params.KeyType {
		return nil, fmt.Errorf("%s: key type %s, token alg %s: %w", op, key.KeyType, h.Algorithm, ErrKeyAlgMismatch)
	}
	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch pk := pub.(type) {
	case *rsa.PublicKey:
		if params.KeyType != KeyTypeRSA {
			return nil, fmt.Errorf("%s: rsa key for %s: %w", op, h.Algorithm, ErrKeyAlgMismatch)
		}
	case *ecdsa.PublicKey:
		if params.KeyType != KeyTypeEC || pk.Curve.Params().Name != params.Curve {
			return nil, fmt.Errorf("%s: ecdsa %s key for %s: %w", op, pk.Curve.Params().Name, h.Algorithm, ErrKeyAlgMismatch)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported key type %T: %w", op, pub, ErrInvalidKey)
	}

	ks := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{pub}}
	payload, err := ks.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}
	return payload, nil
}

// UnverifiedClaims decodes the token's claims without verifying its
// signature. Only use it on tokens that were verified when they were
// received.
func UnverifiedClaims(token string, claims interface{}) error {
	const op = "jwt.UnverifiedClaims"
	tok, err := josejwt.ParseSigned(token, joseAlgorithms)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedToken, err)
	}
	if err := tok.UnsafeClaimsWithoutVerification(claims); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedToken, err)
	}
	return nil
}
