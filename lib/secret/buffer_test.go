// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNewAndClose(t *testing.T) {
	buffer, err := New(32)
	if err != nil {
		t.Fatal(err)
	}
	if buffer.Len() != 32 {
		t.Fatalf("Len = %d, want 32", buffer.Len())
	}
	copy(buffer.Bytes(), "the_org_book_0000000000000000000")
	if string(buffer.Bytes()) != "the_org_book_0000000000000000000" {
		t.Fatal("buffer contents mismatch")
	}
	if err := buffer.Close(); err != nil {
		t.Fatal(err)
	}
	// Close is idempotent.
	if err := buffer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("my_seed_000000000000000000000000")
	want := append([]byte(nil), source...)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatal(err)
	}
	defer buffer.Close()

	if !bytes.Equal(buffer.Bytes(), want) {
		t.Fatal("buffer does not hold the original bytes")
	}
	if !bytes.Equal(source, make([]byte, len(source))) {
		t.Fatal("source slice was not zeroed")
	}
}

func TestBytesPanicsAfterClose(t *testing.T) {
	buffer, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("Bytes on a closed buffer did not panic")
		}
	}()
	buffer.Bytes()
}

func TestReadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed")
	if err := os.WriteFile(path, []byte("  0000000000000000000000MyAgent0\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	buffer, err := ReadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	defer buffer.Close()

	if buffer.String() != "0000000000000000000000MyAgent0" {
		t.Fatalf("seed = %q, want trimmed value", buffer.String())
	}
}

func TestReadFromPathEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFromPath(path); err == nil {
		t.Fatal("empty secret file should be rejected")
	}
}
