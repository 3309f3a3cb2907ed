package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/config"
	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/cli/tui"
	courierlode "github.com/pithecene-io/courier/lode"
)

// historyWarningThreshold is the row count above which an unlimited
// history prints a hint on an interactive terminal.
const historyWarningThreshold = 100

// HistoryRows is per-query search history as rendered by history.
type HistoryRows []courierlode.QueryStats

// Header implements render.Table.
func (h HistoryRows) Header() []string {
	return []string{"query", "total", "profiles", "errors", "reasons", "last_seen"}
}

// Rows implements render.Table.
func (h HistoryRows) Rows() [][]string {
	rows := make([][]string, len(h))
	for i, s := range h {
		rows[i] = []string{
			s.Query,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Profiles),
			strconv.Itoa(s.Errors),
			formatReasons(s.Reasons),
			s.LastSeen.Format(time.RFC3339),
		}
	}
	return rows
}

func formatReasons(reasons map[string]int) string {
	parts := make([]string, 0, len(reasons))
	for r, n := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", r, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// HistoryCommand returns the history command.
// It reads the lookup archive; nothing in the mailbox is touched.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show archived lookup counts per query",
		ArgsUsage: "[query]",
		Flags: append(append(MailboxFlags(), ReadOnlyFlags()...),
			&cli.StringFlag{
				Name:  "day",
				Usage: "Restrict to one day (YYYY-MM-DD)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum rows to show (0 = all)",
			},
			&cli.StringFlag{
				Name:  "archive-backend",
				Usage: "Archive backend: fs or s3 (default: archive.backend)",
			},
			&cli.StringFlag{
				Name:  "archive-path",
				Usage: "Archive path (fs: directory, s3: bucket/prefix)",
			},
		),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if day := c.String("day"); day != "" {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return cli.Exit(fmt.Sprintf("invalid --day %q: want YYYY-MM-DD", day), 1)
		}
	}

	cfg, err := loadConfig(c, func(cfg *config.Config) {
		if c.IsSet("archive-backend") {
			cfg.Archive.Backend = c.String("archive-backend")
		}
		if c.IsSet("archive-path") {
			cfg.Archive.Path = c.String("archive-path")
		}
	})
	if err != nil {
		return err
	}

	archive, err := buildArchive(c.Context, cfg.Archive)
	if err != nil {
		return err
	}
	if archive == nil {
		return cli.Exit("no archive configured (archive.backend or --archive-backend)", 1)
	}

	stats, err := courierlode.QueryCounts(c.Context, archive.Dataset(), courierlode.Filter{
		Query: c.Args().First(),
		Day:   c.String("day"),
	})
	if err != nil {
		return err
	}

	limit := c.Int("limit")
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	if len(stats) > historyWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: %d queries; use --limit or a query argument to narrow\n", len(stats))
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsHistory, stats)
	}
	return r.Render(HistoryRows(stats))
}
