// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package launch implements "vonwrap launch": start the wrapper server
// for an agent profile and supervise it until it exits.
package launch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	"github.com/openvon/vonwrap/lib/config"
	"github.com/openvon/vonwrap/lib/inifile"
	liblaunch "github.com/openvon/vonwrap/lib/launch"
	"github.com/openvon/vonwrap/lib/sealed"
)

type launchParams struct {
	Config string `flag:"config,c" desc:"path to vonwrap.yaml (default: $VONWRAP_CONFIG)"`
	Mode   string `flag:"mode"     desc:"launch mode override (development, production)"`
}

// Command returns the "launch" command.
func Command() *cli.Command {
	var params launchParams

	return &cli.Command{
		Name:    "launch",
		Summary: "Start the wrapper server for an agent profile",
		Description: `Start the wrapper server bound to the configured address with the
profile's environment: TEST_POOL_IP (caller environment wins, the
configured default otherwise), AGENT_PROFILE, and RUST_LOG.

The command reports whether the ledger pool is reachable, waits for
the server to accept connections, and then supervises it. SIGINT or
SIGTERM stops the server gracefully, giving it the configured stop
timeout to release its wallet before a hard kill.

If the profile references a wallet seed file, the seed is loaded (and
decrypted, for .age files) and passed to the server only through its
environment.`,
		Usage: "vonwrap launch <profile> [flags]",
		Examples: []cli.Example{
			{
				Description: "Launch the BC registrar agent",
				Command:     "vonwrap launch bc-registrar --config ./vonwrap.yaml",
			},
			{
				Description: "Launch under gunicorn regardless of the configured mode",
				Command:     "vonwrap launch sri --mode production",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("launch", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one profile argument is required")
			}
			return run(args[0], &params)
		},
	}
}

func run(profile string, params *launchParams) error {
	cfg, err := cli.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "launch", "profile", profile)

	extraEnv, err := seedEnv(cfg, profile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher := &liblaunch.Launcher{Config: cfg, Logger: logger}
	return launcher.Launch(ctx, liblaunch.Options{
		Profile:  profile,
		Mode:     params.Mode,
		ExtraEnv: extraEnv,
	})
}

// seedEnv loads the profile's wallet seed, if the profile references
// one, and returns it as environment entries for the child. The seed
// never appears in logs or argv.
func seedEnv(cfg *config.Config, profile string) ([]string, error) {
	sections, err := inifile.ParseFile(cfg.ProfilePath(profile))
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", profile, err)
	}
	agent := sections["Agent"]
	if agent == nil {
		return nil, nil
	}

	if seed := strings.TrimSpace(agent["seed"]); seed != "" {
		return []string{"WALLET_SEED=" + seed}, nil
	}

	seedFile := strings.TrimSpace(agent["seed_file"])
	if seedFile == "" {
		return nil, nil
	}
	if !filepath.IsAbs(seedFile) {
		seedFile = filepath.Join(filepath.Dir(cfg.ProfilePath(profile)), seedFile)
	}

	seed, err := sealed.LoadSeed(seedFile, cfg.Launch.SealedIdentity)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", profile, err)
	}
	defer seed.Close()
	return []string{"WALLET_SEED=" + seed.String()}, nil
}
