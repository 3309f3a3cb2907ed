// Package cmd provides CLI commands for the courier and courier-responder
// binaries.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for inspect and history.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, history only)",
	}
)

// Shared flags for every command that touches the mailbox.
var (
	// ConfigFlag points at courier.yaml.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to courier.yaml",
		EnvVars: []string{"COURIER_CONFIG"},
	}

	// MailboxFlag overrides mailbox.dir.
	MailboxFlag = &cli.StringFlag{
		Name:    "mailbox",
		Aliases: []string{"m"},
		Usage:   "Mailbox directory shared by requester and responder",
		EnvVars: []string{"COURIER_MAILBOX"},
	}

	// LogLevelFlag overrides log.level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Minimum log level: debug, info, warn, error",
	}
)

// ReadOnlyFlags returns the shared output flags.
// --tui is always accepted so unsupported commands can fail with an
// explicit message instead of "flag provided but not defined".
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// MailboxFlags returns the config, mailbox and log flags.
func MailboxFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, MailboxFlag, LogLevelFlag}
}

// isStderrTTY reports whether stderr is a terminal.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
