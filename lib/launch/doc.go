// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package launch starts and supervises the wrapper server process.
//
// The launcher's contract: resolve the project root through symlinks,
// assemble a fixed environment (TEST_POOL_IP with its default,
// AGENT_PROFILE, RUST_LOG), and start the configured server command
// bound to the fixed wrapper address. On top of that it provides a
// TCP readiness wait, pool reachability reporting, graceful stop with
// a cleanup window (the wrapper needs a few seconds to tidy its
// wallet state), and an atomically written CBOR run-state file
// recording the last transition.
package launch
