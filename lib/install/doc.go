// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package install executes install manifests against the host:
// digest-verified artifact placement with backup-before-overwrite,
// idempotent config key appends, and a SQLite audit ledger recording
// every action.
//
// The observable outcome of a run is deliberately minimal: a genesis
// path appended to config.ini if absent, and shared libraries placed
// under the destination root. The engine makes each of those
// mutations explicit, verified, and recorded.
package install
