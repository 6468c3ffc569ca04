// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"context"
	"errors"
	"io/fs"

	"github.com/openvon/vonwrap/lib/artifact"
)

// VerifyStatus classifies one verified artifact.
type VerifyStatus string

const (
	// VerifyOK means the destination bytes match the recorded digest.
	VerifyOK VerifyStatus = "ok"
	// VerifyModified means the destination exists with different
	// contents than were installed.
	VerifyModified VerifyStatus = "modified"
	// VerifyMissing means the destination file no longer exists.
	VerifyMissing VerifyStatus = "missing"
)

// VerifyResult is the outcome of re-checking one installed artifact.
type VerifyResult struct {
	Artifact       string       `json:"artifact"`
	Destination    string       `json:"destination"`
	Status         VerifyStatus `json:"status"`
	RecordedDigest string       `json:"recorded_digest"`
	CurrentDigest  string       `json:"current_digest,omitempty"`
}

// Verify re-hashes every artifact the ledger records as installed and
// compares against the recorded digest. It mutates nothing.
func Verify(ctx context.Context, ledger *Ledger) ([]VerifyResult, error) {
	installs, err := ledger.LatestInstalls(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]VerifyResult, 0, len(installs))
	for _, action := range installs {
		result := VerifyResult{
			Artifact:       action.Artifact,
			Destination:    action.Destination,
			RecordedDigest: action.Digest,
		}

		current, err := artifact.HashFile(action.Destination)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			result.Status = VerifyMissing
		case err != nil:
			return nil, err
		case current.String() == action.Digest:
			result.Status = VerifyOK
			result.CurrentDigest = current.String()
		default:
			result.Status = VerifyModified
			result.CurrentDigest = current.String()
		}

		results = append(results, result)
	}
	return results, nil
}
