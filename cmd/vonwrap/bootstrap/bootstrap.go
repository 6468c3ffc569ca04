// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap implements "vonwrap bootstrap": apply the install
// manifest (config keys and bundled artifacts) to the host.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	"github.com/openvon/vonwrap/lib/install"
	"github.com/openvon/vonwrap/lib/manifest"
)

type bootstrapParams struct {
	cli.JSONOutput
	Config   string `json:"-"        flag:"config,c"  desc:"path to vonwrap.yaml (default: $VONWRAP_CONFIG)"`
	Manifest string `json:"manifest" flag:"manifest"  desc:"override the configured install manifest path"`
	DestRoot string `json:"dest_root" flag:"dest-root" desc:"override the configured install destination root"`
}

// Command returns the "bootstrap" command.
func Command() *cli.Command {
	var params bootstrapParams

	return &cli.Command{
		Name:    "bootstrap",
		Summary: "Install bundled artifacts and append config keys",
		Description: `Apply the install manifest: ensure required keys are present in the
wrapper config (appending them when missing, never rewriting existing
values) and install bundled artifacts such as libindy.so to the
destination root.

Every artifact is digest-verified before and after it touches the
destination, existing files are backed up before overwrite, and every
action is recorded in the install ledger. Bootstrap is idempotent: a
second run over an unchanged bundle reports everything as unchanged.`,
		Usage: "vonwrap bootstrap [flags]",
		Examples: []cli.Example{
			{
				Description: "Apply the configured manifest",
				Command:     "vonwrap bootstrap --config ./vonwrap.yaml",
			},
			{
				Description: "Stage into a scratch root for inspection",
				Command:     "vonwrap bootstrap --config ./vonwrap.yaml --dest-root /tmp/stage",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("bootstrap", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return run(&params)
		},
	}
}

func run(params *bootstrapParams) error {
	cfg, err := cli.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	if params.Manifest != "" {
		cfg.Install.Manifest = params.Manifest
	}
	if params.DestRoot != "" {
		cfg.Install.DestRoot = params.DestRoot
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "bootstrap")

	m, err := manifest.ReadFile(cfg.Install.Manifest)
	if err != nil {
		return err
	}

	ledger, err := install.OpenLedger(cfg.Install.Ledger, logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	engine := &install.Engine{
		BundleDir:     cfg.Paths.Bundle,
		DestRoot:      cfg.Install.DestRoot,
		BackupDir:     cfg.Paths.Backups,
		WrapperConfig: cfg.Paths.WrapperConfig,
		GenesisValue:  cfg.Paths.Genesis,
		LockPath:      cfg.Install.Ledger + ".lock",
		Ledger:        ledger,
		Logger:        logger,
	}

	summary, err := engine.Run(context.Background(), m)
	if err != nil {
		return err
	}

	if done, err := params.EmitJSON(summary); done {
		return err
	}
	fmt.Printf("config keys: %d appended, %d already present\n",
		summary.ConfigAppended, summary.ConfigPresent)
	fmt.Printf("artifacts: %d installed, %d unchanged, %d backed up\n",
		summary.Installed, summary.Unchanged, summary.Backups)
	return nil
}
