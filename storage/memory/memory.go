// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package memory provides an in-memory storage for oidc flow state. It is
// safe for concurrent use, and nothing survives the process.
package memory

import (
	"context"
	"sync"
)

// Storage keeps values per config id.
type Storage struct {
	mu      sync.RWMutex
	configs map[string]map[string]string
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{configs: map[string]map[string]string{}}
}

// Read returns the value of key for configID.
func (s *Storage) Read(_ context.Context, configID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.configs[configID][key]
	return v, ok, nil
}

// Write sets the value of key for configID.
func (s *Storage) Write(_ context.Context, configID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.configs[configID]
	if !ok {
		m = map[string]string{}
		s.configs[configID] = m
	}
	m[key] = value
	return nil
}

// Remove deletes key for configID. Removing a missing key is not an error.
func (s *Storage) Remove(_ context.Context, configID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs[configID], key)
	if len(s.configs[configID]) == 0 {
		delete(s.configs, configID)
	}
	return nil
}

// Keys returns the keys stored for configID.
func (s *Storage) Keys(configID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.configs[configID]))
	for k := range s.configs[configID] {
		keys = append(keys, k)
	}
	return keys
}
