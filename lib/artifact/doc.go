// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact provides content identity and source encoding for
// installable artifacts: BLAKE3 keyed digests and per-source
// compression (none, lz4, zstd).
//
// Digests are always computed over the uncompressed artifact bytes, so
// the digest recorded in an install manifest stays stable when the
// bundled source switches compression algorithms.
package artifact
