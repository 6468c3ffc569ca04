// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package seal implements "vonwrap seal": create age identities and
// seal wallet seed files to them.
package seal

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/openvon/vonwrap/cmd/vonwrap/cli"
	"github.com/openvon/vonwrap/lib/sealed"
	"github.com/openvon/vonwrap/lib/secret"
)

// Command returns the "seal" parent command with all subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "seal",
		Summary: "Manage sealed wallet seeds",
		Description: `Create age x25519 identities and seal wallet seed files to them.

A sealed seed is an age-encrypted file stored next to the agent
profiles with a .age extension. At launch time the seed is decrypted
with the identity file named by launch.sealed_identity in the config
and handed to the wrapper server through its environment only.`,
		Subcommands: []*cli.Command{
			keygenCommand(),
			seedCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Create an identity for this host",
				Command:     "vonwrap seal keygen --output ~/.config/vonwrap/identity.txt",
			},
			{
				Description: "Seal a seed for the bc-org-book profile",
				Command:     "vonwrap seal seed --recipient age1... --output bc-org-book.seed.age ./seed.txt",
			},
		},
	}
}

type keygenParams struct {
	Output string `flag:"output,o" desc:"identity file to write (required)"`
}

func keygenCommand() *cli.Command {
	var params keygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age identity for unsealing seeds",
		Description: `Generate an age x25519 keypair. The private identity is written to
the output file with mode 0600; the public key is printed to stdout
for use as a --recipient when sealing seeds.`,
		Usage: "vonwrap seal keygen --output <path>",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if params.Output == "" {
				return fmt.Errorf("--output is required")
			}
			return runKeygen(&params)
		},
	}
}

func runKeygen(params *keygenParams) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	contents := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
		time.Now().UTC().Format(time.RFC3339),
		keypair.PublicKey,
		keypair.PrivateKey.String(),
	)
	if err := os.WriteFile(params.Output, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}

	fmt.Println(keypair.PublicKey)
	return nil
}

type seedParams struct {
	Recipients []string `flag:"recipient,r" desc:"age public key to seal to (repeatable, required)"`
	Output     string   `flag:"output,o"    desc:"sealed seed file to write (required, should end in .age)"`
}

func seedCommand() *cli.Command {
	var params seedParams

	return &cli.Command{
		Name:    "seed",
		Summary: "Seal a wallet seed file to age recipients",
		Description: `Encrypt a wallet seed to one or more age recipients and write the
ASCII-armored ciphertext to the output file. The seed is read from the
file argument, or from stdin when the argument is "-".`,
		Usage: "vonwrap seal seed --recipient <age1...> --output <path> <seed-file>",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("seed", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one seed file argument is required (use - for stdin)")
			}
			if len(params.Recipients) == 0 {
				return fmt.Errorf("at least one --recipient is required")
			}
			if params.Output == "" {
				return fmt.Errorf("--output is required")
			}
			return runSeed(args[0], &params)
		},
	}
}

func runSeed(seedPath string, params *seedParams) error {
	for _, recipient := range params.Recipients {
		if err := sealed.ParsePublicKey(recipient); err != nil {
			return fmt.Errorf("recipient %q: %w", recipient, err)
		}
	}

	seed, err := secret.ReadFromPath(seedPath)
	if err != nil {
		return err
	}
	defer seed.Close()

	ciphertext, err := sealed.Encrypt(seed.Bytes(), params.Recipients)
	if err != nil {
		return err
	}
	if err := os.WriteFile(params.Output, ciphertext, 0o600); err != nil {
		return fmt.Errorf("write sealed seed: %w", err)
	}

	fmt.Printf("sealed seed written to %s (%d recipients)\n", params.Output, len(params.Recipients))
	return nil
}
