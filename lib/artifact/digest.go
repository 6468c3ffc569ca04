// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of an artifact's uncompressed
// bytes. All artifact identity in manifests and the install ledger is
// this type.
type Digest [32]byte

// artifactDomainKey is the 32-byte key for BLAKE3 keyed hashing.
// Domain separation ensures vonwrap artifact digests never collide
// with hashes of the same bytes computed in another context. The key
// is the ASCII encoding of the domain name, zero-padded to 32 bytes —
// readable in hex dumps without sacrificing any cryptographic
// property. Changing it invalidates every recorded digest.
var artifactDomainKey = [32]byte{
	'v', 'o', 'n', 'w', 'r', 'a', 'p', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashBytes computes the artifact-domain BLAKE3 keyed digest of data.
func HashBytes(data []byte) Digest {
	hasher, err := blake3.NewKeyed(artifactDomainKey[:])
	if err != nil {
		// NewKeyed fails only for a key that is not 32 bytes.
		panic("artifact: keyed hasher initialization failed: " + err.Error())
	}
	hasher.Write(data)

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// HashFile computes the artifact-domain digest of the file at path.
// The file is streamed through the hash function so memory usage is
// constant regardless of file size.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher, err := blake3.NewKeyed(artifactDomainKey[:])
	if err != nil {
		panic("artifact: keyed hasher initialization failed: " + err.Error())
	}
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// String returns the hex encoding of the digest. This is the canonical
// format used in manifests, ledger rows, and log output.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a hex-encoded digest string. Returns an error if
// the string is not a valid 64-character hex encoding of 32 bytes.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing artifact digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("artifact digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}
