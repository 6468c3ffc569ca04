// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openvon/vonwrap/lib/codec"
)

// RunState records the last launch transition. It is written
// atomically next to the rest of the wrapper state so `vonwrap audit`
// and a subsequent `vonwrap launch` can see what the previous launcher
// did without parsing process tables.
type RunState struct {
	Profile     string    `cbor:"profile"`
	Mode        string    `cbor:"mode"`
	PID         int       `cbor:"pid"`
	Command     []string  `cbor:"command"`
	BindAddress string    `cbor:"bind_address"`
	PoolIP      string    `cbor:"pool_ip"`
	StartedAt   time.Time `cbor:"started_at"`
}

// WriteRunState persists state at path via a temp file and rename so a
// crash mid-write never leaves a torn state file behind.
func WriteRunState(path string, state RunState) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".runstate-*")
	if err != nil {
		return fmt.Errorf("create temp run state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write run state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync run state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close run state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish run state: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// ReadRunState loads the run state at path. A missing file returns
// fs.ErrNotExist wrapped with context.
func ReadRunState(path string) (RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunState{}, fmt.Errorf("read run state: %w", err)
	}
	var state RunState
	if err := codec.Unmarshal(data, &state); err != nil {
		return RunState{}, fmt.Errorf("decode run state %s: %w", path, err)
	}
	return state, nil
}

// Stale reports whether the recorded process is gone: the state file
// is missing, the PID no longer exists, or signalling it fails. A
// stale state file is informational, not an error.
func Stale(path string) (bool, error) {
	state, err := ReadRunState(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if state.PID <= 0 {
		return true, nil
	}
	proc, err := os.FindProcess(state.PID)
	if err != nil {
		return true, nil
	}
	// Signal 0 probes for existence without delivering anything.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return true, nil
	}
	return false, nil
}

// ClearRunState removes the state file. A missing file is fine.
func ClearRunState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear run state: %w", err)
	}
	return nil
}
