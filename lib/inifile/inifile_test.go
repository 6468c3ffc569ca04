// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package inifile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestEnsureKeyAppends(t *testing.T) {
	path := writeTemp(t, "[Common]\nhost=0.0.0.0\n")

	added, err := EnsureKey(path, "genesis.txn.path", "/opt/von/genesis.txn")
	if err != nil {
		t.Fatalf("EnsureKey: %v", err)
	}
	if !added {
		t.Error("EnsureKey should report the key was added")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasSuffix(string(data), "genesis.txn.path=/opt/von/genesis.txn\n") {
		t.Errorf("file does not end with appended line: %q", string(data))
	}
}

func TestEnsureKeyIdempotent(t *testing.T) {
	path := writeTemp(t, "[Common]\nhost=0.0.0.0\n")

	for i := 0; i < 3; i++ {
		if _, err := EnsureKey(path, "genesis.txn.path", "/opt/von/genesis.txn"); err != nil {
			t.Fatalf("EnsureKey run %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	count := strings.Count(string(data), "genesis.txn.path=")
	if count != 1 {
		t.Errorf("got %d genesis.txn.path lines, want exactly 1\nfile:\n%s", count, data)
	}
}

func TestEnsureKeyLeavesExistingValueUntouched(t *testing.T) {
	original := "[Common]\ngenesis.txn.path=/wrong/but/present\n"
	path := writeTemp(t, original)

	added, err := EnsureKey(path, "genesis.txn.path", "/opt/von/genesis.txn")
	if err != nil {
		t.Fatalf("EnsureKey: %v", err)
	}
	if added {
		t.Error("EnsureKey must not add a second line when the key exists")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != original {
		t.Errorf("file was modified:\ngot:  %q\nwant: %q", data, original)
	}
}

func TestEnsureKeyAddsNewlineBeforeAppend(t *testing.T) {
	// File without a trailing newline: the appended line must start
	// on its own line, not glue onto the last one.
	path := writeTemp(t, "host=0.0.0.0")

	if _, err := EnsureKey(path, "genesis.txn.path", "/g"); err != nil {
		t.Fatalf("EnsureKey: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "host=0.0.0.0\ngenesis.txn.path=/g\n" {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestEnsureKeyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.ini")
	if _, err := EnsureKey(path, "k", "v"); err == nil {
		t.Fatal("EnsureKey should fail for a missing file")
	}
}

func TestHasKey(t *testing.T) {
	tests := []struct {
		name string
		data string
		key  string
		want bool
	}{
		{"present", "genesis.txn.path=/g\n", "genesis.txn.path", true},
		{"present with spaces", "  genesis.txn.path = /g\n", "genesis.txn.path", true},
		{"present in section", "[Pool]\ngenesis.txn.path=/g\n", "genesis.txn.path", true},
		{"absent", "host=0.0.0.0\n", "genesis.txn.path", false},
		{"prefix does not match", "genesis.txn.path.extra=/g\n", "genesis.txn.path", false},
		{"commented out", "#genesis.txn.path=/g\n", "genesis.txn.path", false},
		{"semicolon comment", "; genesis.txn.path=/g\n", "genesis.txn.path", false},
		{"empty file", "", "genesis.txn.path", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := HasKey([]byte(test.data), test.key); got != test.want {
				t.Errorf("HasKey(%q, %q) = %v, want %v", test.data, test.key, got, test.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	data := `
; wrapper config
top=value

[Agent]
Host = 0.0.0.0
port=8002

[Trust Anchor]
seed=000000000000000000000000Trustee1
not-an-assignment
`
	sections := Parse([]byte(data))

	if got := sections[""]["top"]; got != "value" {
		t.Errorf("sectionless key: got %q, want %q", got, "value")
	}
	if got := sections["Agent"]["host"]; got != "0.0.0.0" {
		t.Errorf("Agent host: got %q (keys must be lowercased)", got)
	}
	if got := sections["Agent"]["port"]; got != "8002" {
		t.Errorf("Agent port: got %q", got)
	}
	if got := sections["Trust Anchor"]["seed"]; got != "000000000000000000000000Trustee1" {
		t.Errorf("Trust Anchor seed: got %q", got)
	}
	if _, ok := sections["Trust Anchor"]["not-an-assignment"]; ok {
		t.Error("lines without '=' must be skipped")
	}
}
