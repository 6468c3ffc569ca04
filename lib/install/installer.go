// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openvon/vonwrap/lib/artifact"
	"github.com/openvon/vonwrap/lib/inifile"
	"github.com/openvon/vonwrap/lib/manifest"
)

// Engine executes install manifests. All paths are absolute by the
// time they reach the engine; relative manifest entries are resolved
// against BundleDir (sources), DestRoot (destinations), and the
// wrapper config's directory (config files).
type Engine struct {
	// BundleDir holds the bundled artifact sources.
	BundleDir string

	// DestRoot is prefixed to relative artifact destinations.
	DestRoot string

	// BackupDir receives timestamped copies of destination files
	// about to be overwritten. Must exist.
	BackupDir string

	// WrapperConfig is the wrapper's config.ini, the default target
	// for config key entries.
	WrapperConfig string

	// GenesisValue is the value appended for config keys whose
	// manifest entry leaves the value empty.
	GenesisValue string

	// LockPath is the flock file guarding the run. Empty disables
	// locking (tests).
	LockPath string

	// Ledger records every action. Required.
	Ledger *Ledger

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Summary counts what a run did.
type Summary struct {
	ConfigAppended int `json:"config_appended"`
	ConfigPresent  int `json:"config_present"`
	Installed      int `json:"installed"`
	Unchanged      int `json:"unchanged"`
	Backups        int `json:"backups"`
}

// Run executes the manifest: config keys first, then artifacts, in
// manifest order.
// The first error halts the run; completed steps stay done (there is
// no rollback) and the failure is recorded in the ledger.
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest) (*Summary, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if e.LockPath != "" {
		lock, err := AcquireLock(e.LockPath)
		if err != nil {
			return nil, err
		}
		defer lock.Release()
	}

	summary := &Summary{}

	for _, key := range m.ConfigKeys {
		if err := e.ensureConfigKey(ctx, key, summary, logger); err != nil {
			return summary, err
		}
	}

	for _, a := range m.Artifacts {
		if err := e.installArtifact(ctx, a, summary, logger); err != nil {
			return summary, err
		}
	}

	logger.Info("bootstrap complete",
		"installed", summary.Installed,
		"unchanged", summary.Unchanged,
		"backups", summary.Backups,
		"config_appended", summary.ConfigAppended,
		"config_present", summary.ConfigPresent,
	)
	return summary, nil
}

// ensureConfigKey applies one config key entry and records the outcome.
func (e *Engine) ensureConfigKey(ctx context.Context, key manifest.ConfigKey, summary *Summary, logger *slog.Logger) error {
	path := key.File
	switch {
	case path == "":
		path = e.WrapperConfig
	case !filepath.IsAbs(path):
		path = filepath.Join(filepath.Dir(e.WrapperConfig), path)
	}

	value := key.Value
	if value == "" {
		value = e.GenesisValue
	}

	added, err := inifile.EnsureKey(path, key.Key, value)
	if err != nil {
		e.recordFailure(ctx, Action{Destination: path, Detail: err.Error()}, logger)
		return fmt.Errorf("ensuring %s in %s: %w", key.Key, path, err)
	}

	action := Action{Kind: ActionConfigPresent, Destination: path, Detail: key.Key}
	if added {
		action.Kind = ActionConfigAppend
		action.Detail = key.Key + "=" + value
		summary.ConfigAppended++
		logger.Info("config key appended", "file", path, "key", key.Key)
	} else {
		summary.ConfigPresent++
		logger.Info("config key already present", "file", path, "key", key.Key)
	}
	return e.Ledger.Record(ctx, action)
}

// installArtifact verifies, backs up, and places one artifact.
func (e *Engine) installArtifact(ctx context.Context, a manifest.Artifact, summary *Summary, logger *slog.Logger) error {
	source := a.Source
	if !filepath.IsAbs(source) {
		source = filepath.Join(e.BundleDir, source)
	}
	dest := a.Destination
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(e.DestRoot, dest)
	}

	fail := func(err error) error {
		e.recordFailure(ctx, Action{Artifact: a.Name, Source: source, Destination: dest, Detail: err.Error()}, logger)
		return fmt.Errorf("installing %s: %w", a.Name, err)
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return fail(fmt.Errorf("reading source: %w", err))
	}

	size := int(a.UncompressedSize)
	tag := a.CompressionTag()
	if tag == artifact.CompressionNone {
		size = len(raw)
	}
	plain, err := artifact.Decompress(raw, tag, size)
	if err != nil {
		return fail(err)
	}

	// Digest verification happens before any destination mutation: a
	// corrupted or substituted source never reaches the host.
	want := a.ParsedDigest()
	if got := artifact.HashBytes(plain); got != want {
		return fail(fmt.Errorf("source digest mismatch: manifest says %s, source is %s", want, got))
	}

	mode, err := a.FileMode()
	if err != nil {
		return fail(err)
	}

	if existing, err := artifact.HashFile(dest); err == nil {
		if existing == want {
			summary.Unchanged++
			logger.Info("artifact unchanged", "artifact", a.Name, "destination", dest)
			return e.Ledger.Record(ctx, Action{
				Kind: ActionUnchanged, Artifact: a.Name, Source: source,
				Destination: dest, Digest: want.String(),
			})
		}
		backupPath, err := e.backup(dest)
		if err != nil {
			return fail(fmt.Errorf("backing up %s: %w", dest, err))
		}
		summary.Backups++
		logger.Info("destination backed up", "artifact", a.Name, "backup", backupPath)
		if err := e.Ledger.Record(ctx, Action{
			Kind: ActionBackup, Artifact: a.Name, Source: dest,
			Destination: backupPath, Digest: existing.String(),
		}); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(fmt.Errorf("examining destination: %w", err))
	}

	if err := atomicWrite(dest, plain, mode); err != nil {
		return fail(err)
	}

	// Re-verify what actually landed. A mismatch here means disk or
	// filesystem trouble, not a bad bundle.
	if got, err := artifact.HashFile(dest); err != nil {
		return fail(fmt.Errorf("re-reading destination: %w", err))
	} else if got != want {
		return fail(fmt.Errorf("destination digest mismatch after install: %s", got))
	}

	summary.Installed++
	logger.Info("artifact installed", "artifact", a.Name, "destination", dest, "digest", want.String())
	return e.Ledger.Record(ctx, Action{
		Kind: ActionInstall, Artifact: a.Name, Source: source,
		Destination: dest, Digest: want.String(),
	})
}

// backup copies the file at dest into BackupDir under a timestamped
// name and returns the backup path. Contents are copied rather than
// renamed because the backup directory may live on a different
// filesystem than the destination.
func (e *Engine) backup(dest string) (string, error) {
	data, err := os.ReadFile(dest)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dest)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s.%s", filepath.Base(dest), time.Now().UTC().Format("20060102T150405.000000000Z"))
	backupPath := filepath.Join(e.BackupDir, name)
	if err := atomicWrite(backupPath, data, info.Mode().Perm()); err != nil {
		return "", err
	}
	return backupPath, nil
}

// atomicWrite writes data to path via a temp file in the same
// directory: write, fsync, rename into place, fsync the parent
// directory. Readers never see a partial file.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", temporaryPath, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing %s: %w", temporaryPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing %s: %w", temporaryPath, err)
	}
	// The open mode above is filtered by umask; restore the exact
	// requested permissions.
	if err := os.Chmod(temporaryPath, mode); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("setting mode on %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}

	// Persist the rename. Matters when the machine loses power
	// between rename and the OS flushing directory metadata.
	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// recordFailure best-effort records a failure row. Ledger errors here
// are logged, not returned — the original failure is what the caller
// needs to see.
func (e *Engine) recordFailure(ctx context.Context, action Action, logger *slog.Logger) {
	action.Kind = ActionFailure
	if err := e.Ledger.Record(ctx, action); err != nil {
		logger.Error("recording failure action", "error", err)
	}
}
