// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest provides parsing and validation for vonwrap install
// manifests. A manifest declares everything the bootstrap step is
// allowed to touch: the artifacts to place on the host and the config
// keys to ensure in wrapper INI files.
//
// Manifests are authored on disk as JSONC (JSON extended with comments
// and trailing commas). The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Manifest
//  2. Validate: structural checks before any filesystem mutation
//  3. install.Run: execute the manifest against the host
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/openvon/vonwrap/lib/artifact"
)

// Manifest is a declarative description of one bootstrap run.
type Manifest struct {
	// Artifacts are files to install, in order.
	Artifacts []Artifact `json:"artifacts"`

	// ConfigKeys are key=value lines to ensure in INI files, in
	// order. Entries follow the wrapper's append-only contract: an
	// existing key is never updated.
	ConfigKeys []ConfigKey `json:"config_keys"`
}

// Artifact describes one file to install.
type Artifact struct {
	// Name identifies the artifact in logs and the install ledger.
	Name string `json:"name"`

	// Source is the bundled file, relative to the bundle directory
	// (absolute paths are used as-is). It may be compressed; see
	// Compression.
	Source string `json:"source"`

	// Destination is where the artifact lands, relative to the
	// install dest_root (absolute paths are used as-is).
	Destination string `json:"destination"`

	// Mode is the octal file mode for the installed file, e.g.
	// "0755". Empty means 0644.
	Mode string `json:"mode,omitempty"`

	// Digest is the hex BLAKE3 digest of the uncompressed artifact
	// bytes. Verified against the source before install and against
	// the destination after.
	Digest string `json:"digest"`

	// Compression names the source encoding: "none" (default),
	// "lz4", or "zstd".
	Compression string `json:"compression,omitempty"`

	// UncompressedSize is the exact byte length of the uncompressed
	// artifact. Required when Compression is not "none".
	UncompressedSize int64 `json:"uncompressed_size,omitempty"`
}

// ConfigKey describes one key to ensure in an INI file.
type ConfigKey struct {
	// File is the INI file to edit. Empty means the configured
	// wrapper config.ini.
	File string `json:"file,omitempty"`

	// Key is the key name, e.g. "genesis.txn.path".
	Key string `json:"key"`

	// Value is the value appended when the key is absent. Empty
	// means the configured genesis path — the one value bootstrap
	// derives itself.
	Value string `json:"value,omitempty"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Manifest.
func Parse(data []byte) (*Manifest, error) {
	stripped := jsonc.ToJSON(data)

	var m Manifest
	if err := json.Unmarshal(stripped, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	return &m, nil
}

// ReadFile reads a JSONC manifest file from disk and parses it.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteFile writes the manifest to path as indented JSON with a short
// header comment. The output parses back through ReadFile.
func WriteFile(path string, m *Manifest) error {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	contents := append([]byte("// install manifest written by vonwrap bundle\n"), body...)
	contents = append(contents, '\n')
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// Validate performs structural checks on the manifest. It returns all
// problems at once so a manifest author fixes one round, not one
// field per run.
func (m *Manifest) Validate() error {
	var errs []error

	if len(m.Artifacts) == 0 && len(m.ConfigKeys) == 0 {
		errs = append(errs, errors.New("manifest is empty: no artifacts and no config_keys"))
	}

	seen := make(map[string]bool, len(m.Artifacts))
	for i, a := range m.Artifacts {
		where := fmt.Sprintf("artifacts[%d]", i)
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else {
			where = fmt.Sprintf("artifact %q", a.Name)
			if seen[a.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", where))
			}
			seen[a.Name] = true
		}
		if a.Source == "" {
			errs = append(errs, fmt.Errorf("%s: source is required", where))
		}
		if a.Destination == "" {
			errs = append(errs, fmt.Errorf("%s: destination is required", where))
		}
		if a.Digest == "" {
			errs = append(errs, fmt.Errorf("%s: digest is required", where))
		} else if _, err := artifact.ParseDigest(a.Digest); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		tag, err := artifact.ParseCompressionTag(a.Compression)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		} else if tag != artifact.CompressionNone && a.UncompressedSize <= 0 {
			errs = append(errs, fmt.Errorf("%s: uncompressed_size is required for %s sources", where, tag))
		}
		if _, err := a.FileMode(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	for i, k := range m.ConfigKeys {
		if k.Key == "" {
			errs = append(errs, fmt.Errorf("config_keys[%d]: key is required", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// FileMode returns the parsed octal mode for the installed file.
// Empty means 0644.
func (a *Artifact) FileMode() (os.FileMode, error) {
	if a.Mode == "" {
		return 0644, nil
	}
	parsed, err := strconv.ParseUint(a.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", a.Mode, err)
	}
	if parsed > 0777 {
		return 0, fmt.Errorf("invalid mode %q: permission bits only", a.Mode)
	}
	return os.FileMode(parsed), nil
}

// CompressionTag returns the parsed compression tag. Call Validate
// first; unknown tags return CompressionNone here.
func (a *Artifact) CompressionTag() artifact.CompressionTag {
	tag, _ := artifact.ParseCompressionTag(a.Compression)
	return tag
}

// ParsedDigest returns the parsed digest. Call Validate first; an
// invalid digest returns the zero digest here.
func (a *Artifact) ParsedDigest() artifact.Digest {
	digest, _ := artifact.ParseDigest(a.Digest)
	return digest
}
