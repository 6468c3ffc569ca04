// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// The vonwrap binary is the unified CLI for VON agent wrapper hosts:
// bootstrap the host (install bundled artifacts, append config keys),
// launch the wrapper server for an agent profile, audit and verify the
// install ledger, and manage sealed wallet seeds.
//
// Run "vonwrap --help" for the command tree.
package main
