// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/openvon/vonwrap/lib/artifact"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestLedgerRecordAndRead(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for _, kind := range []ActionKind{ActionConfigAppend, ActionBackup, ActionInstall} {
		if err := ledger.Record(ctx, Action{Kind: kind, Artifact: "libindy.so"}); err != nil {
			t.Fatalf("Record(%s): %v", kind, err)
		}
	}

	actions, err := ledger.Actions(ctx, 0)
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}
	// Newest first.
	if actions[0].Kind != ActionInstall || actions[2].Kind != ActionConfigAppend {
		t.Errorf("unexpected order: %s ... %s", actions[0].Kind, actions[2].Kind)
	}
	if actions[0].Time.IsZero() {
		t.Error("Record should fill a zero Time")
	}
}

func TestLedgerActionsLimit(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := ledger.Record(ctx, Action{Kind: ActionInstall, Artifact: "a"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	actions, err := ledger.Actions(ctx, 2)
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	if len(actions) != 2 {
		t.Errorf("got %d actions, want 2", len(actions))
	}
}

func TestLatestInstallsKeepsNewestPerArtifact(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	record := func(kind ActionKind, name, digest string) {
		t.Helper()
		if err := ledger.Record(ctx, Action{Kind: kind, Artifact: name, Destination: "/lib/" + name, Digest: digest}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	record(ActionInstall, "libindy.so", "old")
	record(ActionInstall, "libindy.so", "new")
	record(ActionInstall, "libvdr.so", "only")
	record(ActionConfigAppend, "", "")

	installs, err := ledger.LatestInstalls(ctx)
	if err != nil {
		t.Fatalf("LatestInstalls: %v", err)
	}
	if len(installs) != 2 {
		t.Fatalf("got %d installs, want 2", len(installs))
	}
	byName := map[string]string{}
	for _, action := range installs {
		byName[action.Artifact] = action.Digest
	}
	if byName["libindy.so"] != "new" {
		t.Errorf("libindy.so digest = %q, want the newest row", byName["libindy.so"])
	}
	if byName["libvdr.so"] != "only" {
		t.Errorf("libvdr.so digest = %q", byName["libvdr.so"])
	}
}

func TestVerifyReportsStatus(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()
	dir := t.TempDir()

	okContent := []byte("still intact")
	okPath := filepath.Join(dir, "ok.so")
	if err := os.WriteFile(okPath, okContent, 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	modifiedPath := filepath.Join(dir, "modified.so")
	if err := os.WriteFile(modifiedPath, []byte("tampered"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	record := func(name, dest string, digest artifact.Digest) {
		t.Helper()
		err := ledger.Record(ctx, Action{Kind: ActionInstall, Artifact: name, Destination: dest, Digest: digest.String()})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	record("ok.so", okPath, artifact.HashBytes(okContent))
	record("modified.so", modifiedPath, artifact.HashBytes([]byte("original")))
	record("missing.so", filepath.Join(dir, "gone.so"), artifact.HashBytes(nil))

	results, err := Verify(ctx, ledger)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	byName := map[string]VerifyStatus{}
	for _, result := range results {
		byName[result.Artifact] = result.Status
	}
	want := map[string]VerifyStatus{
		"ok.so":       VerifyOK,
		"modified.so": VerifyModified,
		"missing.so":  VerifyMissing,
	}
	for name, status := range want {
		if byName[name] != status {
			t.Errorf("%s: status = %s, want %s", name, byName[name], status)
		}
	}
}
