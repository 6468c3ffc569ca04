// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openvon/vonwrap/lib/netutil"
)

// dialTimeout bounds a single connection attempt. Kept short so a
// down pool is reported quickly.
const dialTimeout = 2 * time.Second

// pollInterval is the delay between readiness attempts.
const pollInterval = 500 * time.Millisecond

// IsUp reports whether a TCP listener accepts connections on addr.
func IsUp(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitTCP polls addr until it accepts a TCP connection, the timeout
// elapses, or ctx is cancelled.
func WaitTCP(ctx context.Context, addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if IsUp(addr) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no listener on %s after %s", addr, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// AgentDID queries the wrapper's identity endpoint and returns the
// agent DID. It is the deep readiness check: the endpoint only answers
// once the wrapper has registered its DID with the ledger.
func AgentDID(ctx context.Context, addr string) (string, error) {
	url := fmt.Sprintf("http://%s/api/v0/did", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build DID request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query %s: %s: %s", url, resp.Status, netutil.ErrorBody(resp.Body))
	}
	data, err := netutil.ReadResponse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read DID response: %w", err)
	}
	did, err := parseDID(data)
	if err != nil {
		return "", fmt.Errorf("decode DID response: %w", err)
	}
	if did == "" {
		return "", fmt.Errorf("%s returned an empty DID", url)
	}
	return did, nil
}

// parseDID decodes the identity endpoint's response. The wrapper
// returns the DID as a bare JSON string; an object form with a "did"
// field is accepted as well.
func parseDID(data []byte) (string, error) {
	var did string
	if err := json.Unmarshal(data, &did); err == nil {
		return did, nil
	}
	var body struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", err
	}
	return body.DID, nil
}
