// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"strings"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	var payload struct {
		DID string `json:"did"`
	}
	err := DecodeResponse(strings.NewReader(`{"did": "V4SGRU86Z58d6TV7PBUe6f"}`), &payload)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if payload.DID != "V4SGRU86Z58d6TV7PBUe6f" {
		t.Errorf("did = %q", payload.DID)
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	var v any
	if err := DecodeResponse(strings.NewReader("{"), &v); err == nil {
		t.Fatal("DecodeResponse should fail on truncated JSON")
	}
}

func TestReadResponseBounded(t *testing.T) {
	data, err := ReadResponse(strings.NewReader("body"))
	if err != nil || string(data) != "body" {
		t.Fatalf("ReadResponse = %q, %v", data, err)
	}
}

func TestErrorBodyNeverFails(t *testing.T) {
	if got := ErrorBody(strings.NewReader("boom")); got != "boom" {
		t.Errorf("ErrorBody = %q", got)
	}
}
