// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	"github.com/openvon/vonwrap/lib/artifact"
	"github.com/openvon/vonwrap/lib/manifest"
)

type bundleParams struct {
	Config      string `flag:"config,c"    desc:"path to vonwrap.yaml (default: $VONWRAP_CONFIG)"`
	Compression string `flag:"compression" desc:"source encoding: none, lz4, or zstd" default:"zstd"`
	Mode        string `flag:"mode"        desc:"installed file mode for all arguments" default:"0755"`
	Manifest    string `flag:"manifest"    desc:"manifest file to write (default: the configured install manifest)"`
}

// BundleCommand returns the "bundle" command.
func BundleCommand() *cli.Command {
	var params bundleParams

	return &cli.Command{
		Name:    "bundle",
		Summary: "Stage files into the bundle and write the install manifest",
		Description: `Compress each file argument into the bundle directory, compute its
digest, and write a manifest describing the resulting bundle. The
manifest also carries the standard config key entry that ensures
genesis.txn.path is present in the wrapper config.

The destination of each artifact is its base name, relative to the
install dest_root. Adjust the written manifest by hand for anything
fancier; it is plain JSONC.`,
		Usage: "vonwrap bundle [flags] <file>...",
		Examples: []cli.Example{
			{
				Description: "Bundle libindy.so for installation into /usr/lib",
				Command:     "vonwrap bundle --config ./vonwrap.yaml ./build/libindy.so",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("bundle", &params)
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one file argument is required")
			}
			return runBundle(args, &params)
		},
	}
}

func runBundle(files []string, params *bundleParams) error {
	cfg, err := cli.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Paths.Bundle, 0o755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}

	tag, err := artifact.ParseCompressionTag(params.Compression)
	if err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "bundle")

	m := &manifest.Manifest{
		ConfigKeys: []manifest.ConfigKey{
			{Key: "genesis.txn.path"},
		},
	}

	for _, file := range files {
		entry, err := stage(file, cfg.Paths.Bundle, tag, params.Mode)
		if err != nil {
			return err
		}
		logger.Info("staged artifact",
			"name", entry.Name,
			"source", entry.Source,
			"digest", entry.Digest,
		)
		m.Artifacts = append(m.Artifacts, *entry)
	}

	if err := m.Validate(); err != nil {
		return fmt.Errorf("generated manifest is invalid: %w", err)
	}

	manifestPath := params.Manifest
	if manifestPath == "" {
		manifestPath = cfg.Install.Manifest
	}
	if err := manifest.WriteFile(manifestPath, m); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d artifacts)\n", manifestPath, len(m.Artifacts))
	return nil
}

// stage compresses one file into the bundle directory and returns its
// manifest entry.
func stage(path, bundleDir string, tag artifact.CompressionTag, mode string) (*manifest.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	digest := artifact.HashBytes(data)

	encoded, err := artifact.Compress(data, tag)
	if errors.Is(err, artifact.ErrIncompressible) {
		// Already-compressed content: store it plain.
		tag = artifact.CompressionNone
		encoded = data
	} else if err != nil {
		return nil, fmt.Errorf("compressing %s: %w", path, err)
	}

	name := filepath.Base(path)
	source := name
	if tag != artifact.CompressionNone {
		source = name + "." + tag.String()
	}
	if err := os.WriteFile(filepath.Join(bundleDir, source), encoded, 0o644); err != nil {
		return nil, fmt.Errorf("writing bundled %s: %w", source, err)
	}

	entry := &manifest.Artifact{
		Name:        name,
		Source:      source,
		Destination: name,
		Mode:        mode,
		Digest:      digest.String(),
	}
	if tag != artifact.CompressionNone {
		entry.Compression = tag.String()
		entry.UncompressedSize = int64(len(data))
	}
	return entry, nil
}

