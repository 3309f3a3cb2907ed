package cmd

import (
	"errors"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string `json:"version"`
	ContractVersion string `json:"contract_version"`
	Commit          string `json:"commit"`
	GoVersion       string `json:"go_version"`
	// Responder is set when a mailbox is given and a responder heartbeat
	// is present there.
	Responder *ResponderVersion `json:"responder,omitempty"`
}

// ResponderVersion is what the serving responder reports in its heartbeat.
type ResponderVersion struct {
	ContractVersion string `json:"contract_version"`
	Compatible      bool   `json:"compatible"`
	PID             int    `json:"pid"`
	Hostname        string `json:"hostname"`
}

// VersionCommand returns the version command.
// With --mailbox it also reports whether the responder serving that mailbox
// speaks the same contract; it never writes to the mailbox.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  append(MailboxFlags(), ReadOnlyFlags()...),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		resp := VersionResponse{
			Version:         types.Version,
			ContractVersion: types.ContractVersion,
			Commit:          commit,
			GoVersion:       runtime.Version(),
		}
		if c.IsSet("mailbox") || c.IsSet("config") {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			dir, err := openMailbox(cfg)
			if err != nil {
				return err
			}
			if resp.Responder, err = responderVersion(dir); err != nil {
				return err
			}
		}
		return r.Render(resp)
	}
}

// responderVersion returns nil when no responder has written a heartbeat.
func responderVersion(dir *mailbox.Dir) (*ResponderVersion, error) {
	hb, err := dir.ReadHeartbeat()
	if errors.Is(err, mailbox.ErrNoHeartbeat) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ResponderVersion{
		ContractVersion: hb.ContractVersion,
		Compatible:      hb.ContractVersion == types.ContractVersion,
		PID:             hb.PID,
		Hostname:        hb.Hostname,
	}, nil
}
