// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package redis provides a storage for oidc flow state backed by redis.
// Each config is one hash, so the state of a config can be shared by
// several processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is prepended to the config id to name a config's hash.
const DefaultKeyPrefix = "oidc:"

// ErrNilClient is returned when no redis client is provided.
var ErrNilClient = errors.New("redis client is nil")

// Storage keeps values in one redis hash per config id.
type Storage struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	logger hclog.Logger
}

// New creates a Storage over client.
// Supported options:
//
//	WithKeyPrefix
//	WithTTL
//	WithLogger
func New(client goredis.UniversalClient, opt ...Option) (*Storage, error) {
	const op = "redis.New"
	if client == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNilClient)
	}
	opts := getOpts(opt...)
	s := &Storage{
		client: client,
		prefix: opts.withKeyPrefix,
		ttl:    opts.withTTL,
		logger: opts.withLogger,
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	return s, nil
}

func (s *Storage) hash(configID string) string { return s.prefix + configID }

// Read returns the value of key for configID.
func (s *Storage) Read(ctx context.Context, configID, key string) (string, bool, error) {
	const op = "Storage.Read"
	v, err := s.client.HGet(ctx, s.hash(configID), key).Result()
	switch {
	case errors.Is(err, goredis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%s: %s: %w", op, key, err)
	}
	return v, true, nil
}

// Write sets the value of key for configID. With a ttl, the config's hash
// expires ttl after its last write.
func (s *Storage) Write(ctx context.Context, configID, key, value string) error {
	const op = "Storage.Write"
	h := s.hash(configID)
	if s.ttl <= 0 {
		if err := s.client.HSet(ctx, h, key, value).Err(); err != nil {
			return fmt.Errorf("%s: %s: %w", op, key, err)
		}
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, h, key, value)
		pipe.Expire(ctx, h, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, key, err)
	}
	return nil
}

// Remove deletes key for configID. Removing a missing key is not an error.
func (s *Storage) Remove(ctx context.Context, configID, key string) error {
	const op = "Storage.Remove"
	if err := s.client.HDel(ctx, s.hash(configID), key).Err(); err != nil {
		return fmt.Errorf("%s: %s: %w", op, key, err)
	}
	s.logger.Trace("removed", "config_id", configID, "key", key)
	return nil
}
