package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/config"
	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/responder"
)

// SweepCommand returns the sweep command.
// It runs one orphan-reclamation pass, the same pass the responder runs
// on its sweep interval.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete responses and temp files nobody collected",
		Flags: append(append(MailboxFlags(), ReadOnlyFlags()...),
			&cli.DurationFlag{
				Name:  "retention",
				Usage: "Minimum age of a deleted file (default: responder.retention)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would be deleted without deleting",
			},
		),
		Action: sweepAction,
	}
}

func sweepAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for sweep command", 1)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c, func(cfg *config.Config) {
		durationFlag(c, "retention", &cfg.Responder.Retention)
	})
	if err != nil {
		return err
	}
	dir, err := openMailbox(cfg)
	if err != nil {
		return err
	}

	sweeper, err := responder.NewSweeper(responder.SweepConfig{
		Dir:       dir,
		Retention: cfg.Responder.Retention.Duration,
		DryRun:    c.Bool("dry-run"),
		Logger:    newLogger(cfg, "sweep"),
	})
	if err != nil {
		return err
	}

	report, err := sweeper.Sweep(time.Now())
	if err != nil {
		return err
	}
	if err := r.Render(report); err != nil {
		return err
	}
	if report.Errors > 0 {
		return cli.Exit(fmt.Sprintf("%d files could not be removed", report.Errors), 1)
	}
	return nil
}
