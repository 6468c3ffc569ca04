// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

// sampleState mirrors the shape of vonwrap's on-disk state records:
// cbor struct tags, the convention for purely-internal types.
type sampleState struct {
	Profile string    `cbor:"profile"`
	PID     int       `cbor:"pid"`
	Started time.Time `cbor:"started"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleState{
		Profile: "bc-registrar",
		PID:     4242,
		Started: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleState
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Started.Equal(original.Started) {
		t.Errorf("started = %v, want %v", decoded.Started, original.Started)
	}
	if decoded.Profile != original.Profile || decoded.PID != original.PID {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	state := sampleState{Profile: "sri", PID: 7}

	first, err := Marshal(state)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(state)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestUnmarshalAnyUsesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"profile": "sri", "nested": map[string]any{"pid": 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := top["nested"].(map[string]any); !ok {
		t.Fatalf("nested type = %T, want map[string]any", top["nested"])
	}
}
