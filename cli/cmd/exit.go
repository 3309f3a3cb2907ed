package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

// ExitStatus maps a command error to a process exit code and the message
// worth printing. cli.Exit codes survive wrapping; any other error exits 1.
// The message is empty when there is nothing to print.
func ExitStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N) reports "exit status N".
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return 1, "Error: " + err.Error()
}
