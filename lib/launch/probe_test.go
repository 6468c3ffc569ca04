// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAgentDID(t *testing.T) {
	// The wrapper returns the DID as a bare JSON string; the object
	// form is accepted for compatibility.
	tests := []struct {
		name string
		body string
	}{
		{"bare string", `"UteZyhkoPMQSvBb764gBEf"`},
		{"object", `{"did": "UteZyhkoPMQSvBb764gBEf", "verkey": "..."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v0/did" {
					http.NotFound(w, r)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			addr := strings.TrimPrefix(srv.URL, "http://")
			did, err := AgentDID(context.Background(), addr)
			if err != nil {
				t.Fatal(err)
			}
			if did != "UteZyhkoPMQSvBb764gBEf" {
				t.Fatalf("did = %q", did)
			}
		})
	}
}

func TestAgentDIDErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wallet not ready", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	_, err := AgentDID(context.Background(), addr)
	if err == nil || !strings.Contains(err.Error(), "wallet not ready") {
		t.Fatalf("err = %v, want body in error", err)
	}
}

func TestAgentDIDEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	_, err := AgentDID(context.Background(), addr)
	if err == nil || !strings.Contains(err.Error(), "empty DID") {
		t.Fatalf("err = %v, want empty DID error", err)
	}
}
