// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
)

// ReadFromPath reads a secret from a file path, or from stdin if path
// is "-". The returned buffer must be closed by the caller. Leading
// and trailing whitespace is trimmed before storing. Returns an error
// if the source is empty after trimming.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading secret file: %w", err)
		}
		data = fileData
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret source is empty")
	}

	buffer, err := NewFromBytes(trimmed)
	// NewFromBytes zeroed the trimmed view; zero the rest of the
	// original read as well.
	for index := range data {
		data[index] = 0
	}
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
