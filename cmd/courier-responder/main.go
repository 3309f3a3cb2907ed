// Package main provides the courier-responder entrypoint.
//
// Usage:
//
//	courier-responder run --config courier.yaml [--mailbox DIR] [--provider botapi|static] [--watch]
//
// The responder exits 0 after SIGINT or SIGTERM once in-flight lookups
// have been answered.
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
		Name:    "courier-responder",
		Usage:   "Answer identity lookups left in the mailbox",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.VersionCommand(commit),
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}
			code, msg := cmd.ExitStatus(err)
			if msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(code)
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
