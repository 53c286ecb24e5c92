// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Storage is a key/value store. Every key is scoped by a config id, values
// of one config are never visible to another. Implementations must be safe
// for concurrent use.
type Storage interface {
	// Read returns the value of key and whether it was present.
	Read(ctx context.Context, configID, key string) (string, bool, error)

	// Write sets key to value.
	Write(ctx context.Context, configID, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, configID, key string) error
}

// Storage keys of the per flow values.
const (
	KeyAuthNonce              = "authNonce"
	KeyAuthStateControl       = "authStateControl"
	KeyCodeVerifier           = "codeVerifier"
	KeySessionState           = "session_state"
	KeyCodeFlowInProgress     = "storageCodeFlowInProgress"
	KeySilentRenewRunning     = "storageSilentRenewRunning"
	KeyAuthWellKnownEndpoints = "authWellKnownEndPoints"
	KeyAuthnResult            = "authnResult"
	KeyAuthzData              = "authzData"
	KeyAccessTokenExpiresAt   = "access_token_expires_at"
	KeyUserData               = "userData"
)

// sessionKeys are removed when a session ends. The cached endpoints are
// kept.
var sessionKeys = []string{
	KeyAuthnResult,
	KeyAuthzData,
	KeyAccessTokenExpiresAt,
	KeyUserData,
	KeySessionState,
	KeySilentRenewRunning,
	KeyCodeFlowInProgress,
	KeyCodeVerifier,
	KeyAuthNonce,
}

// store is a Storage scoped to one config.
type store struct {
	s        Storage
	configID string
}

func (s store) read(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.s.Read(ctx, s.configID, key)
	if err != nil {
		return "", false, fmt.Errorf("unable to read %s: %w", key, err)
	}
	return v, ok, nil
}

func (s store) write(ctx context.Context, key, value string) error {
	if err := s.s.Write(ctx, s.configID, key, value); err != nil {
		return fmt.Errorf("unable to write %s: %w", key, err)
	}
	return nil
}

func (s store) remove(ctx context.Context, key string) error {
	if err := s.s.Remove(ctx, s.configID, key); err != nil {
		return fmt.Errorf("unable to remove %s: %w", key, err)
	}
	return nil
}

// readJSON decodes the value of key into v. An absent or empty value
// returns false.
func (s store) readJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, ok, err := s.read(ctx, key)
	if err != nil || !ok || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("unable to decode %s: %w", key, err)
	}
	return true, nil
}

func (s store) writeJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("unable to encode %s: %w", key, err)
	}
	return s.write(ctx, key, string(b))
}
