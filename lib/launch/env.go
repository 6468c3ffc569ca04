// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"strings"

	"github.com/openvon/vonwrap/lib/config"
)

// Environ builds the child process environment from the caller's
// environment and the launch configuration.
//
// TEST_POOL_IP is inherited from the caller when set (even when set
// to the empty string the caller's choice wins); otherwise it gets the
// configured default. AGENT_PROFILE and RUST_LOG are always forced:
// the profile comes from the launch request, never from the ambient
// environment.
func Environ(base []string, profile string, cfg *config.Config) []string {
	env := make([]string, len(base))
	copy(env, base)
	if _, ok := lookupEnv(env, "TEST_POOL_IP"); !ok {
		env = setEnv(env, "TEST_POOL_IP", cfg.Launch.DefaultPoolIP)
	}
	env = setEnv(env, "AGENT_PROFILE", profile)
	env = setEnv(env, "RUST_LOG", cfg.Launch.RustLog)
	return env
}

// PoolIP reports the pool address the child will see: the caller's
// TEST_POOL_IP when present, the configured default otherwise.
func PoolIP(base []string, cfg *config.Config) string {
	if v, ok := lookupEnv(base, "TEST_POOL_IP"); ok {
		return v
	}
	return cfg.Launch.DefaultPoolIP
}

func lookupEnv(env []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):], true
		}
	}
	return "", false
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	entry := prefix + value
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = entry
			return env
		}
	}
	return append(env, entry)
}
