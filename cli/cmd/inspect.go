package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/cli/tui"
	"github.com/pithecene-io/courier/mailbox"
)

// InspectCommand returns the inspect command.
// Inspect is read-only: it classifies mailbox files and reads the
// heartbeat but never deletes anything.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Summarize mailbox contents and responder liveness",
		Flags: append(append(MailboxFlags(), ReadOnlyFlags()...),
			&cli.DurationFlag{
				Name:  "orphan-age",
				Usage: "Age after which a response counts as orphaned (default: responder.retention)",
			},
			&cli.DurationFlag{
				Name:  "stale-after",
				Usage: "Heartbeat age after which the responder counts as stale (default: 3 heartbeat intervals)",
			},
			&cli.DurationFlag{
				Name:  "refresh",
				Usage: "TUI refresh interval",
				Value: time.Second,
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dir, err := openMailbox(cfg)
	if err != nil {
		return err
	}

	orphanAge := cfg.Responder.Retention.Duration
	if c.IsSet("orphan-age") {
		orphanAge = c.Duration("orphan-age")
	}
	staleAfter := 3 * cfg.Responder.HeartbeatInterval.Duration
	if c.IsSet("stale-after") {
		staleAfter = c.Duration("stale-after")
	}

	take := func() (*mailbox.Census, error) {
		return dir.TakeCensus(time.Now(), orphanAge, staleAfter)
	}
	census, err := take()
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectMailbox, census, tui.WithRefresh(take, c.Duration("refresh")))
	}
	return r.Render(census)
}
