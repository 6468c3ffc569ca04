// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit implements "vonwrap audit" and "vonwrap verify":
// inspect the install ledger and re-verify installed artifacts.
package audit

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	"github.com/openvon/vonwrap/lib/install"
)

type auditParams struct {
	cli.JSONOutput
	Config string `json:"-"     flag:"config,c" desc:"path to vonwrap.yaml (default: $VONWRAP_CONFIG)"`
	Limit  int    `json:"limit" flag:"limit,n"  desc:"maximum number of actions to show" default:"50"`
}

// Command returns the "audit" command.
func Command() *cli.Command {
	var params auditParams

	return &cli.Command{
		Name:    "audit",
		Summary: "Show the install ledger",
		Description: `Print recent install ledger actions, newest first. Every bootstrap
run appends its actions here: config keys appended or already present,
artifacts installed or unchanged, backups taken, and failures.`,
		Usage: "vonwrap audit [flags]",
		Examples: []cli.Example{
			{
				Description: "Show the last 10 actions",
				Command:     "vonwrap audit --limit 10",
			},
			{
				Description: "Feed the full history to jq",
				Command:     "vonwrap audit --limit 0 --json | jq '.[] | select(.kind == \"failure\")'",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("audit", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runAudit(&params)
		},
	}
}

func runAudit(params *auditParams) error {
	cfg, err := cli.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger().With("command", "audit")

	ledger, err := install.OpenLedger(cfg.Install.Ledger, logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	actions, err := ledger.Actions(context.Background(), params.Limit)
	if err != nil {
		return err
	}

	if done, err := params.EmitJSON(actions); done {
		return err
	}

	if len(actions) == 0 {
		fmt.Println("ledger is empty; run 'vonwrap bootstrap' first")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tARTIFACT\tDESTINATION\tDETAIL")
	for _, action := range actions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			action.Time.Local().Format(time.RFC3339),
			action.Kind, action.Artifact, action.Destination, action.Detail)
	}
	return tw.Flush()
}
