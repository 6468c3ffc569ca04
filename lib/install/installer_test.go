// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openvon/vonwrap/lib/artifact"
	"github.com/openvon/vonwrap/lib/manifest"
)

// testEngine builds an Engine over a temp tree with a fresh ledger.
type testEngine struct {
	engine *Engine
	ledger *Ledger

	bundle string
	dest   string
	config string
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	root := t.TempDir()

	bundle := filepath.Join(root, "usr-lib")
	dest := filepath.Join(root, "system-lib")
	backups := filepath.Join(root, "backups")
	for _, dir := range []string{bundle, dest, backups} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}

	config := filepath.Join(root, "config.ini")
	if err := os.WriteFile(config, []byte("[Common]\nhost=0.0.0.0\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ledger, err := OpenLedger(filepath.Join(root, "ledger.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	return &testEngine{
		engine: &Engine{
			BundleDir:     bundle,
			DestRoot:      dest,
			BackupDir:     backups,
			WrapperConfig: config,
			GenesisValue:  filepath.Join(root, "genesis.txn"),
			Ledger:        ledger,
		},
		ledger: ledger,
		bundle: bundle,
		dest:   dest,
		config: config,
	}
}

// stageArtifact writes content into the bundle dir and returns a
// manifest entry describing it.
func (te *testEngine) stageArtifact(t *testing.T, name string, content []byte) manifest.Artifact {
	t.Helper()
	if err := os.WriteFile(filepath.Join(te.bundle, name), content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return manifest.Artifact{
		Name:        name,
		Source:      name,
		Destination: name,
		Mode:        "0755",
		Digest:      artifact.HashBytes(content).String(),
	}
}

func libindyBytes() []byte {
	content := make([]byte, 16*1024)
	for i := range content {
		content[i] = byte(i / 32)
	}
	return content
}

func TestRunInstallsArtifactByteForByte(t *testing.T) {
	te := newTestEngine(t)
	content := libindyBytes()
	m := &manifest.Manifest{Artifacts: []manifest.Artifact{te.stageArtifact(t, "libindy.so", content)}}

	summary, err := te.engine.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Installed != 1 {
		t.Errorf("installed = %d, want 1", summary.Installed)
	}

	installed, err := os.ReadFile(filepath.Join(te.dest, "libindy.so"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(installed, content) {
		t.Error("destination contents do not match source byte-for-byte")
	}

	info, _ := os.Stat(filepath.Join(te.dest, "libindy.so"))
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %o, want 0755", info.Mode().Perm())
	}
}

func TestRunInstallsCompressedSource(t *testing.T) {
	te := newTestEngine(t)
	content := libindyBytes()

	for _, tag := range []artifact.CompressionTag{artifact.CompressionLZ4, artifact.CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := artifact.Compress(content, tag)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			name := "libindy.so." + tag.String()
			if err := os.WriteFile(filepath.Join(te.bundle, name), compressed, 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			m := &manifest.Manifest{Artifacts: []manifest.Artifact{{
				Name:             name,
				Source:           name,
				Destination:      name + ".out",
				Digest:           artifact.HashBytes(content).String(),
				Compression:      tag.String(),
				UncompressedSize: int64(len(content)),
			}}}

			if _, err := te.engine.Run(context.Background(), m); err != nil {
				t.Fatalf("Run: %v", err)
			}

			installed, err := os.ReadFile(filepath.Join(te.dest, name+".out"))
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if !bytes.Equal(installed, content) {
				t.Error("installed bytes do not match uncompressed source")
			}
		})
	}
}

func TestRunSecondRunIsUnchanged(t *testing.T) {
	te := newTestEngine(t)
	m := &manifest.Manifest{Artifacts: []manifest.Artifact{te.stageArtifact(t, "libindy.so", libindyBytes())}}

	if _, err := te.engine.Run(context.Background(), m); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	summary, err := te.engine.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Installed != 0 || summary.Unchanged != 1 || summary.Backups != 0 {
		t.Errorf("second run: %+v; want unchanged only", summary)
	}
}

func TestRunBacksUpBeforeOverwrite(t *testing.T) {
	te := newTestEngine(t)
	old := []byte("the old library")
	destPath := filepath.Join(te.dest, "libindy.so")
	if err := os.WriteFile(destPath, old, 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	content := libindyBytes()
	m := &manifest.Manifest{Artifacts: []manifest.Artifact{te.stageArtifact(t, "libindy.so", content)}}

	summary, err := te.engine.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Backups != 1 || summary.Installed != 1 {
		t.Errorf("summary = %+v; want one backup, one install", summary)
	}

	entries, err := os.ReadDir(te.engine.BackupDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("backup dir: %v entries, err %v", len(entries), err)
	}
	backed, err := os.ReadFile(filepath.Join(te.engine.BackupDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile backup: %v", err)
	}
	if !bytes.Equal(backed, old) {
		t.Error("backup does not preserve the old contents")
	}
}

func TestRunAbortsOnDigestMismatchBeforeMutation(t *testing.T) {
	te := newTestEngine(t)
	entry := te.stageArtifact(t, "libindy.so", libindyBytes())
	entry.Digest = artifact.HashBytes([]byte("something else")).String()

	old := []byte("precious existing file")
	destPath := filepath.Join(te.dest, "libindy.so")
	if err := os.WriteFile(destPath, old, 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := te.engine.Run(context.Background(), &manifest.Manifest{Artifacts: []manifest.Artifact{entry}})
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("Run should fail with digest mismatch, got: %v", err)
	}

	// The destination must be untouched and no backup taken.
	current, _ := os.ReadFile(destPath)
	if !bytes.Equal(current, old) {
		t.Error("destination was mutated despite digest mismatch")
	}
	entries, _ := os.ReadDir(te.engine.BackupDir)
	if len(entries) != 0 {
		t.Error("backup taken despite digest mismatch")
	}

	// The failure is on the ledger.
	actions, err := te.ledger.Actions(context.Background(), 1)
	if err != nil || len(actions) != 1 {
		t.Fatalf("Actions: %v, %v", actions, err)
	}
	if actions[0].Kind != ActionFailure {
		t.Errorf("latest action = %s, want failure", actions[0].Kind)
	}
}

func TestRunConfigKeyLifecycle(t *testing.T) {
	te := newTestEngine(t)
	m := &manifest.Manifest{ConfigKeys: []manifest.ConfigKey{{Key: "genesis.txn.path"}}}

	summary, err := te.engine.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if summary.ConfigAppended != 1 {
		t.Errorf("config_appended = %d, want 1", summary.ConfigAppended)
	}

	summary, err = te.engine.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.ConfigAppended != 0 || summary.ConfigPresent != 1 {
		t.Errorf("second run: %+v; want present only", summary)
	}

	data, _ := os.ReadFile(te.config)
	if got := strings.Count(string(data), "genesis.txn.path="); got != 1 {
		t.Errorf("%d genesis.txn.path lines, want exactly 1", got)
	}
	if !strings.Contains(string(data), "genesis.txn.path="+te.engine.GenesisValue) {
		t.Errorf("appended value should be the configured genesis path:\n%s", data)
	}
}

func TestRunRejectsInvalidManifest(t *testing.T) {
	te := newTestEngine(t)
	if _, err := te.engine.Run(context.Background(), &manifest.Manifest{}); err == nil {
		t.Fatal("Run should reject an empty manifest")
	}
}

func TestLockExcludesSecondRun(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "install.lock")

	lock, err := AcquireLock(lockPath)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	if _, err := AcquireLock(lockPath); err == nil {
		t.Fatal("second AcquireLock should fail while the first is held")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// After release the lock is free again.
	second, err := AcquireLock(lockPath)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	second.Release()
}
