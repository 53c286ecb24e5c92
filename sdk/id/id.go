// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package id generates the random values used during an oidc flow: the csrf
// state, the nonce and the pkce code verifier.
package id

import (
	"encoding/hex"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/hashicorp/go-uuid"
)

// suffixLen is the number of base62 characters that are always appended to
// the hex encoded random bytes.
const suffixLen = 7

// Random returns a string of exactly length characters drawn from the
// unreserved url character set. The first part is hex encoded random bytes,
// the remainder is padded with random base62 characters.
func Random(length int) (string, error) {
	const op = "id.Random"
	if length <= 0 {
		return "", fmt.Errorf("%s: length must be greater than zero", op)
	}
	if length <= suffixLen {
		s, err := base62.Random(length)
		if err != nil {
			return "", fmt.Errorf("%s: unable to generate id: %w", op, err)
		}
		return s, nil
	}
	b, err := uuid.GenerateRandomBytes((length - suffixLen) / 2)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate random bytes: %w", op, err)
	}
	prefix := hex.EncodeToString(b)
	suffix, err := base62.Random(length - len(prefix))
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, err)
	}
	return prefix + suffix, nil
}

// New generates an id with an optional prefix.
func New(optionalPrefix string) (string, error) {
	id, err := Random(10)
	if err != nil {
		return "", err
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
