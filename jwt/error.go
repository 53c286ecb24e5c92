// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"errors"
	"fmt"
)

var (
	// ErrKeySelection is matched by every key selection failure.
	ErrKeySelection = errors.New("key selection failed")

	ErrEmptyKeySet     = fmt.Errorf("%w: empty key set", ErrKeySelection)
	ErrNoMatchingKey   = fmt.Errorf("%w: no key matches", ErrKeySelection)
	ErrAmbiguousKeySet = fmt.Errorf("%w: more than one key and no selection criteria", ErrKeySelection)

	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidKey       = errors.New("invalid key")
	ErrKeyAlgMismatch   = errors.New("key does not match signing algorithm")
	ErrInvalidSignature = errors.New("invalid signature")
)
