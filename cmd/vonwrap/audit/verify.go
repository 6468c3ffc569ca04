// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	"github.com/openvon/vonwrap/lib/install"
)

type verifyParams struct {
	cli.JSONOutput
	Config string `json:"-" flag:"config,c" desc:"path to vonwrap.yaml (default: $VONWRAP_CONFIG)"`
}

// VerifyCommand returns the "verify" command.
func VerifyCommand() *cli.Command {
	var params verifyParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Re-verify installed artifacts against the ledger",
		Description: `Re-hash the destination of every artifact the ledger records as
installed and compare against the recorded digest. Exits 0 when all
artifacts match, 1 when any destination is missing or has drifted.`,
		Usage: "vonwrap verify [flags]",
		Examples: []cli.Example{
			{
				Description: "Check installed artifacts",
				Command:     "vonwrap verify --config ./vonwrap.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("verify", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runVerify(&params)
		},
	}
}

func runVerify(params *verifyParams) error {
	cfg, err := cli.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger().With("command", "verify")

	ledger, err := install.OpenLedger(cfg.Install.Ledger, logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	results, err := install.Verify(context.Background(), ledger)
	if err != nil {
		return err
	}

	clean := true
	for _, result := range results {
		if result.Status != install.VerifyOK {
			clean = false
		}
	}

	if done, err := params.EmitJSON(results); done {
		if err != nil {
			return err
		}
		if !clean {
			return &cli.ExitError{Code: 1}
		}
		return nil
	}

	if len(results) == 0 {
		fmt.Println("no installed artifacts recorded; run 'vonwrap bootstrap' first")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIFACT\tSTATUS\tDESTINATION")
	for _, result := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", result.Artifact, result.Status, result.Destination)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !clean {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
