package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/config"
	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/requester"
	"github.com/pithecene-io/courier/types"
)

// Exit codes for lookup.
const (
	exitVerified    = 0
	exitNegative    = 1
	exitUnavailable = 2
)

// LookupResponse is the rendered outcome of one lookup.
type LookupResponse struct {
	Query      string            `json:"query"`
	Status     requester.Status  `json:"status"`
	Profile    *types.Profile    `json:"profile,omitempty"`
	Reason     types.Reason      `json:"reason,omitempty"`
	RetryAfter int               `json:"retry_after,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	Metrics    *metrics.Snapshot `json:"metrics,omitempty"`
}

// Header implements render.Table.
func (r *LookupResponse) Header() []string { return []string{"field", "value"} }

// Rows implements render.Table.
func (r *LookupResponse) Rows() [][]string {
	rows := [][]string{
		{"query", r.Query},
		{"status", string(r.Status)},
	}
	if p := r.Profile; p != nil {
		username := ""
		if p.Username != nil {
			username = *p.Username
		}
		rows = append(rows,
			[]string{"id", strconv.FormatInt(p.ID, 10)},
			[]string{"username", username},
			[]string{"name", strings.TrimSpace(p.FirstName + " " + p.LastName)},
			[]string{"is_bot", strconv.FormatBool(p.IsBot)},
			[]string{"account_creation", p.AccountCreation},
			[]string{"all_usernames", strings.Join(p.AllUsernames, ", ")},
		)
	}
	if r.Reason != "" {
		rows = append(rows, []string{"reason", string(r.Reason)})
	}
	if r.RetryAfter > 0 {
		rows = append(rows, []string{"retry_after", fmt.Sprintf("%ds", r.RetryAfter)})
	}
	if r.Error != "" {
		rows = append(rows, []string{"error", r.Error})
	}
	rows = append(rows, []string{"duration", (time.Duration(r.DurationMs) * time.Millisecond).String()})
	return rows
}

// LookupCommand returns the lookup command.
// Exit status is 0 for a profile, 1 for a negative answer and 2 when no
// answer could be obtained.
func LookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Resolve a handle or numeric id through the mailbox",
		ArgsUsage: "<query>",
		Flags: append(append(MailboxFlags(), ReadOnlyFlags()...),
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-attempt response deadline (default 30s)",
			},
			&cli.IntFlag{
				Name:  "attempts",
				Usage: "Attempts before giving up; only timeouts are retried (default 3)",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Wait between response checks (default 100ms)",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Include requester counters in the output",
			},
		),
		Action: lookupAction,
	}
}

func lookupAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("query required", exitUnavailable)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for lookup command", exitUnavailable)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUnavailable)
	}

	cfg, err := loadConfig(c, func(cfg *config.Config) {
		durationFlag(c, "timeout", &cfg.Requester.Timeout)
		durationFlag(c, "poll-interval", &cfg.Requester.PollInterval)
		if c.IsSet("attempts") {
			cfg.Requester.Attempts = c.Int("attempts")
		}
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUnavailable)
	}
	dir, err := openMailbox(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUnavailable)
	}

	collector := metrics.NewCollector("requester", "")
	client, err := requester.New(requester.Config{
		Dir:          dir,
		PollInterval: cfg.Requester.PollInterval.Duration,
		Timeout:      cfg.Requester.Timeout.Duration,
		Attempts:     cfg.Requester.AttemptPolicy(),
		ReadRetry:    cfg.Requester.ReadRetry.Policy(),
		Logger:       newLogger(cfg, "requester"),
		Metrics:      collector,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUnavailable)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	query := c.Args().First()
	started := time.Now()
	v := requester.Verify(ctx, client, query)

	resp := &LookupResponse{
		Query:      query,
		Status:     v.Status,
		Profile:    v.Profile,
		Reason:     v.Reason,
		RetryAfter: v.RetryAfter,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
	}
	if c.Bool("stats") {
		snap := collector.Snapshot()
		resp.Metrics = &snap
	}

	if err := r.Render(resp); err != nil {
		return cli.Exit(err.Error(), exitUnavailable)
	}
	return cli.Exit("", statusToExitCode(v.Status))
}

func statusToExitCode(s requester.Status) int {
	switch s {
	case requester.StatusVerified:
		return exitVerified
	case requester.StatusNegative:
		return exitNegative
	default:
		return exitUnavailable
	}
}
