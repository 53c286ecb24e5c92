// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads oidc configs from a yaml (or json) file:
//
//	configs:
//	  - configId: google
//	    authority: https://accounts.google.com
//	    clientId: ${GOOGLE_CLIENT_ID}
//	    redirectUrl: https://app.example.com/callback
//	    customParamsAuthRequest:
//	      access_type: offline
//
// A single config may also be written at the top level, without the
// "configs" list. ${VAR} references are expanded from the environment
// after the optional .env files were loaded.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/oidc-rp/oidc"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoConfigs is returned when a file holds no config.
	ErrNoConfigs = errors.New("no configs")

	// ErrInvalidFile is returned when a file cannot be decoded.
	ErrInvalidFile = errors.New("invalid config file")
)

// File is the document Load reads and Marshal writes.
type File struct {
	Configs []*oidc.Config `yaml:"configs"`
}

// Load reads the configs of the file at path. Defaults are applied and
// every config is validated. Config ids are assigned as "<index>-<clientId>"
// when missing and must be unique.
// Supported options:
//
//	WithEnvFiles
//	WithLookupEnv
func Load(path string, opt ...Option) ([]*oidc.Config, error) {
	const op = "config.Load"
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	configs, err := Parse(b, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return configs, nil
}

// Parse decodes configs from b. See Load.
func Parse(b []byte, opt ...Option) ([]*oidc.Config, error) {
	const op = "config.Parse"
	opts := getOpts(opt...)
	if len(opts.withEnvFiles) > 0 {
		if err := godotenv.Load(opts.withEnvFiles...); err != nil {
			return nil, fmt.Errorf("%s: unable to load env files: %w", op, err)
		}
	}
	expanded := os.Expand(string(b), func(name string) string {
		v, _ := opts.withLookupEnv(name)
		return v
	})

	configs, err := decode([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoConfigs)
	}

	var errs *multierror.Error
	seen := make(map[string]bool, len(configs))
	for i, c := range configs {
		if c == nil {
			errs = multierror.Append(errs, fmt.Errorf("config %d: %w", i, ErrNoConfigs))
			continue
		}
		if c.ConfigID == "" {
			c.ConfigID = fmt.Sprintf("%d-%s", i, c.ClientID)
		}
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config %d: %w", i, err))
			continue
		}
		if seen[c.ConfigID] {
			errs = multierror.Append(errs, fmt.Errorf("config %d: %q: %w", i, c.ConfigID, oidc.ErrDuplicateConfigID))
			continue
		}
		seen[c.ConfigID] = true
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return configs, nil
}

// decode accepts either a File or a single config at the top level.
func decode(b []byte) ([]*oidc.Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected a mapping at the top level", ErrInvalidFile)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "configs" {
			var f File
			if err := root.Decode(&f); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
			}
			return f.Configs, nil
		}
	}
	var c oidc.Config
	if err := root.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return []*oidc.Config{&c}, nil
}

// Marshal writes configs as a File.
func Marshal(configs []*oidc.Config) ([]byte, error) {
	const op = "config.Marshal"
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Configs: configs}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}
