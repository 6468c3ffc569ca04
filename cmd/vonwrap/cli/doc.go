// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the vonwrap CLI.
//
// The central type is [Command], which represents a named subcommand
// with optional nested [Command.Subcommands], a [pflag.FlagSet]
// factory, and a Run function. Commands are assembled into a tree in
// cmd/vonwrap/commands and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help output
// with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// Command parameters are plain structs with flag/desc/default tags,
// bound to pflag via [FlagsFromParams]. Embedding [JSONOutput] in a
// params struct adds the --json flag and the EmitJSON helper for
// machine-readable output.
package cli
