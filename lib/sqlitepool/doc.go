// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a fixed-size SQLite connection pool with
// vonwrap-standard pragmas (WAL, NORMAL synchronous, busy timeout).
// The install ledger is the only database vonwrap keeps; the pool
// exists so the audit and verify commands can read it concurrently
// with an in-progress bootstrap.
package sqlitepool
