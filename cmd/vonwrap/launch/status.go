// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	"github.com/openvon/vonwrap/lib/config"
	liblaunch "github.com/openvon/vonwrap/lib/launch"
)

type statusParams struct {
	cli.JSONOutput
	Config  string        `json:"-"       flag:"config,c" desc:"path to vonwrap.yaml (default: $VONWRAP_CONFIG)"`
	Timeout time.Duration `json:"timeout" flag:"timeout"  desc:"DID query timeout" default:"5s"`
}

type statusResult struct {
	Serving   bool   `json:"serving"`
	Bind      string `json:"bind"`
	DID       string `json:"did,omitempty"`
	Pool      string `json:"pool"`
	PoolUp    bool   `json:"pool_up"`
	Profile   string `json:"profile,omitempty"`
	Mode      string `json:"mode,omitempty"`
	PID       int    `json:"pid,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	Stale     bool   `json:"stale,omitempty"`
}

// StatusCommand returns the "status" command.
func StatusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Report wrapper server and pool status",
		Description: `Report whether the wrapper server is accepting connections on the
configured bind address, whether the ledger pool is reachable, and
what the last launch recorded. When the server is up, the agent DID is
queried from its identity endpoint; a DID confirms the agent finished
registering with the ledger.`,
		Usage: "vonwrap status [flags]",
		Examples: []cli.Example{
			{
				Description: "Check the wrapper and pool",
				Command:     "vonwrap status --config ./vonwrap.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runStatus(&params)
		},
	}
}

func runStatus(params *statusParams) error {
	cfg, err := cli.LoadConfig(params.Config)
	if err != nil {
		return err
	}

	result := gatherStatus(cfg, os.Environ(), params.Timeout)

	if done, err := params.EmitJSON(result); done {
		return err
	}

	if result.Serving {
		fmt.Printf("wrapper: serving on %s\n", result.Bind)
		if result.DID != "" {
			fmt.Printf("agent DID: %s\n", result.DID)
		} else {
			fmt.Println("agent DID: not available (agent may still be registering)")
		}
	} else {
		fmt.Printf("wrapper: not serving on %s\n", result.Bind)
	}
	if result.PoolUp {
		fmt.Printf("pool: reachable at %s\n", result.Pool)
	} else {
		fmt.Printf("pool: not reachable at %s\n", result.Pool)
	}
	if result.Profile != "" {
		status := "running"
		if result.Stale {
			status = "stale"
		}
		fmt.Printf("last launch: %s (%s mode), pid %d, started %s [%s]\n",
			result.Profile, result.Mode, result.PID, result.StartedAt, status)
	}
	return nil
}

// gatherStatus probes the wrapper and pool and reads the last run
// state. The pool address resolves the same way launch resolves it:
// TEST_POOL_IP in environ overrides the configured default.
func gatherStatus(cfg *config.Config, environ []string, timeout time.Duration) statusResult {
	poolIP := liblaunch.PoolIP(environ, cfg)
	result := statusResult{
		Bind: cfg.Launch.BindAddress,
		Pool: net.JoinHostPort(poolIP, strconv.Itoa(cfg.Launch.PoolPort)),
	}

	probe := liblaunch.ProbeAddr(cfg.Launch.BindAddress)
	result.Serving = liblaunch.IsUp(probe)
	result.PoolUp = liblaunch.IsUp(result.Pool)

	if result.Serving {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		did, err := liblaunch.AgentDID(ctx, probe)
		cancel()
		if err == nil {
			result.DID = did
		}
	}

	launcher := &liblaunch.Launcher{Config: cfg}
	statePath := launcher.RunStatePath()
	if state, err := liblaunch.ReadRunState(statePath); err == nil {
		result.Profile = state.Profile
		result.Mode = state.Mode
		result.PID = state.PID
		result.StartedAt = state.StartedAt.Format(time.RFC3339)
		if stale, err := liblaunch.Stale(statePath); err == nil {
			result.Stale = stale
		}
	}
	return result
}
