// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/oidc-rp/sdk/id"
)

const (
	stateLength        = 40
	nonceLength        = 40
	codeVerifierLength = 67
)

// FlowState holds the per config values of one authentication attempt: the
// csrf state, the nonce, the pkce code verifier, the session state and the
// code flow in progress flag.
//
// The csrf state is created once and reused by every authorize request until
// a callback that matches it consumes it. A new nonce and code verifier are
// created for every authorize request.
type FlowState struct {
	store store
}

// NewFlowState creates a FlowState for configID over s.
func NewFlowState(s Storage, configID string) *FlowState {
	return &FlowState{store: store{s: s, configID: configID}}
}

// AuthStateControl returns the stored csrf state, if any.
func (f *FlowState) AuthStateControl(ctx context.Context) (string, error) {
	const op = "FlowState.AuthStateControl"
	v, _, err := f.store.read(ctx, KeyAuthStateControl)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// GetOrCreateAuthStateControl returns the stored csrf state, creating and
// storing one when there is none.
func (f *FlowState) GetOrCreateAuthStateControl(ctx context.Context) (string, error) {
	const op = "FlowState.GetOrCreateAuthStateControl"
	v, err := f.AuthStateControl(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if v != "" {
		return v, nil
	}
	v, err = id.Random(stateLength)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	if err := f.store.write(ctx, KeyAuthStateControl, v); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// ConsumeAuthStateControl reports whether state equals the stored csrf
// state. A match removes the stored value so it cannot be replayed.
func (f *FlowState) ConsumeAuthStateControl(ctx context.Context, state string) (bool, error) {
	const op = "FlowState.ConsumeAuthStateControl"
	stored, err := f.AuthStateControl(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if stored == "" || stored != state {
		return false, nil
	}
	if err := f.store.remove(ctx, KeyAuthStateControl); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// CreateNonce creates and stores a new nonce.
func (f *FlowState) CreateNonce(ctx context.Context) (string, error) {
	const op = "FlowState.CreateNonce"
	n, err := id.Random(nonceLength)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	if err := f.store.write(ctx, KeyAuthNonce, n); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Nonce returns the stored nonce, if any.
func (f *FlowState) Nonce(ctx context.Context) (string, error) {
	const op = "FlowState.Nonce"
	v, _, err := f.store.read(ctx, KeyAuthNonce)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// CreateCodeVerifier creates and stores a new pkce code verifier.
func (f *FlowState) CreateCodeVerifier(ctx context.Context) (string, error) {
	const op = "FlowState.CreateCodeVerifier"
	v, err := id.Random(codeVerifierLength)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	if err := f.store.write(ctx, KeyCodeVerifier, v); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// CodeVerifier returns the stored pkce code verifier, if any.
func (f *FlowState) CodeVerifier(ctx context.Context) (string, error) {
	const op = "FlowState.CodeVerifier"
	v, _, err := f.store.read(ctx, KeyCodeVerifier)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// SessionState returns the session_state received with the last callback.
func (f *FlowState) SessionState(ctx context.Context) (string, error) {
	const op = "FlowState.SessionState"
	v, _, err := f.store.read(ctx, KeySessionState)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// SetSessionState stores the session_state of a callback.
func (f *FlowState) SetSessionState(ctx context.Context, sessionState string) error {
	const op = "FlowState.SetSessionState"
	if err := f.store.write(ctx, KeySessionState, sessionState); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsCodeFlowInProgress reports whether an authorize redirect was started and
// its callback has not completed yet.
func (f *FlowState) IsCodeFlowInProgress(ctx context.Context) (bool, error) {
	const op = "FlowState.IsCodeFlowInProgress"
	v, _, err := f.store.read(ctx, KeyCodeFlowInProgress)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	b, _ := strconv.ParseBool(v)
	return b, nil
}

// SetCodeFlowInProgress sets the code flow in progress flag.
func (f *FlowState) SetCodeFlowInProgress(ctx context.Context) error {
	const op = "FlowState.SetCodeFlowInProgress"
	if err := f.store.write(ctx, KeyCodeFlowInProgress, "true"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetCodeFlowInProgress clears the code flow in progress flag.
func (f *FlowState) ResetCodeFlowInProgress(ctx context.Context) error {
	const op = "FlowState.ResetCodeFlowInProgress"
	if err := f.store.remove(ctx, KeyCodeFlowInProgress); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// reset removes the nonce and code verifier of a completed attempt.
func (f *FlowState) reset(ctx context.Context) error {
	for _, k := range []string{KeyAuthNonce, KeyCodeVerifier} {
		if err := f.store.remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
