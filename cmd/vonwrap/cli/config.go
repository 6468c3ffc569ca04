// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/openvon/vonwrap/lib/config"
)

// LoadConfig resolves the configuration for a command: an explicit
// --config path wins, otherwise VONWRAP_CONFIG is consulted. The
// returned config is validated.
func LoadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
