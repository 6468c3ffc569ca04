// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete vonwrap CLI command tree.
package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	auditcmd "github.com/openvon/vonwrap/cmd/vonwrap/audit"
	bootstrapcmd "github.com/openvon/vonwrap/cmd/vonwrap/bootstrap"
	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	launchcmd "github.com/openvon/vonwrap/cmd/vonwrap/launch"
	sealcmd "github.com/openvon/vonwrap/cmd/vonwrap/seal"
	"github.com/openvon/vonwrap/lib/version"
)

// Root builds and returns the complete vonwrap CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "vonwrap",
		Description: `Vonwrap: bootstrap and launch tooling for VON agent wrappers.

Install bundled artifacts (libindy.so, genesis config keys) onto a
host with digest verification and an audit ledger, then launch the
wrapper server for an agent profile with the right environment and
supervise it.`,
		Subcommands: []*cli.Command{
			bootstrapcmd.Command(),
			bootstrapcmd.BundleCommand(),
			launchcmd.Command(),
			launchcmd.StatusCommand(),
			auditcmd.Command(),
			auditcmd.VerifyCommand(),
			sealcmd.Command(),
			versionCommand(),
		},
	}
}

type versionParams struct {
	Short bool `flag:"short" desc:"print only the version number"`
}

func versionCommand() *cli.Command {
	var params versionParams

	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(args []string) error {
			if params.Short {
				fmt.Println(version.Short())
				return nil
			}
			fmt.Println(version.Full())
			return nil
		},
	}
}
