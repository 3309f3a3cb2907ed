// Package main provides the courier CLI, the requester side of the mailbox
// plus read-only operational commands.
//
// Usage:
//
//	courier <command> [options]
//
// Exit codes for lookup:
//   - 0: profile found
//   - 1: negative answer (not a user, rate limited, ...)
//   - 2: no answer (timeout, I/O failure, bad response)
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/cmd"
	"github.com/pithecene-io/courier/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "courier",
		Usage:          "Identity lookups through a shared mailbox directory",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.LookupCommand(),
			cmd.InspectCommand(),
			cmd.SweepCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := cmd.ExitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}
