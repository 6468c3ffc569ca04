// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package inifile reads and edits the flat key=value INI files used by
// wrapper services: the main config.ini and the per-profile agent
// files. The editor is deliberately line-preserving — EnsureKey appends
// a single line and never rewrites, deduplicates, or reorders existing
// content, so hand-edited files survive provisioning untouched.
package inifile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// HasKey reports whether any line in data assigns the given key,
// ignoring surrounding whitespace and section boundaries. A line
// matches when its text before the first '=' trims to exactly key.
// Comment lines (';' or '#') never match.
func HasKey(data []byte, key string) bool {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == ';' || line[0] == '#' || line[0] == '[' {
			continue
		}
		index := strings.IndexByte(line, '=')
		if index < 0 {
			continue
		}
		if strings.TrimSpace(line[:index]) == key {
			return true
		}
	}
	return false
}

// EnsureKey guarantees that the file at path contains at least one
// assignment of key. When the key is already present — with any value,
// in any section — the file is left byte-for-byte untouched and
// EnsureKey returns false. When absent, a single "key=value" line is
// appended (preceded by a newline if the file does not end with one)
// and EnsureKey returns true.
//
// EnsureKey never deduplicates, updates, or validates an existing
// value. Re-running is idempotent: at most one line is ever appended.
func EnsureKey(path, key, value string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	if HasKey(data, key) {
		return false, nil
	}

	line := key + "=" + value + "\n"
	if len(data) > 0 && data[len(data)-1] != '\n' {
		line = "\n" + line
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return false, fmt.Errorf("opening %s for append: %w", path, err)
	}
	if _, err := file.WriteString(line); err != nil {
		file.Close()
		return false, fmt.Errorf("appending to %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return false, fmt.Errorf("closing %s: %w", path, err)
	}
	return true, nil
}

// Parse reads INI data into a section map. Keys are lowercased to
// match the wrapper service's own parser; section names keep their
// case. Keys that appear before any section header land in the ""
// section. Lines without '=' and comment lines are skipped.
func Parse(data []byte) map[string]map[string]string {
	sections := make(map[string]map[string]string)
	current := ""

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			current = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		index := strings.IndexByte(line, '=')
		if index < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:index]))
		value := strings.TrimSpace(line[index+1:])
		if sections[current] == nil {
			sections[current] = make(map[string]string)
		}
		sections[current][key] = value
	}
	return sections
}

// ParseFile reads and parses the INI file at path.
func ParseFile(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data), nil
}
