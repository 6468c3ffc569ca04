// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides vonwrap's standard CBOR encoding configuration.
//
// Vonwrap uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: CLI --json output and the wrapper
//     service's HTTP API responses.
//   - CBOR for internal on-disk state: the launch run-state file that
//     records the last wrapper transition.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every vonwrap package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations (state files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
