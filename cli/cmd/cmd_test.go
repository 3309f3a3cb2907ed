package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/config"
	courierlode "github.com/pithecene-io/courier/lode"
	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/requester"
	"github.com/pithecene-io/courier/types"
)

const testFixtures = `profiles:
  - id: 1001
    username: alice
    first_name: Alice
    account_creation: "2019"
not_users:
  - wonderland_news
`

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Depends on the environment; only checks it does not panic.
	_ = isStderrTTY()
}

func TestStatusToExitCode(t *testing.T) {
	tests := []struct {
		status requester.Status
		want   int
	}{
		{requester.StatusVerified, 0},
		{requester.StatusNegative, 1},
		{requester.StatusUnavailable, 2},
		{"", 2},
	}
	for _, tt := range tests {
		if got := statusToExitCode(tt.status); got != tt.want {
			t.Errorf("statusToExitCode(%q) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestLookupResponse_Rows(t *testing.T) {
	alice := "alice"
	resp := &LookupResponse{
		Query:  "@alice",
		Status: requester.StatusVerified,
		Profile: &types.Profile{
			ID:           1001,
			Username:     &alice,
			FirstName:    "Alice",
			AllUsernames: []string{"alice", "alice_alt"},
		},
		DurationMs: 120,
	}

	got := map[string]string{}
	for _, row := range resp.Rows() {
		got[row[0]] = row[1]
	}
	want := map[string]string{
		"query":            "@alice",
		"status":           "verified",
		"id":               "1001",
		"username":         "alice",
		"name":             "Alice",
		"is_bot":           "false",
		"account_creation": "",
		"all_usernames":    "alice, alice_alt",
		"duration":         "120ms",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupResponse_RowsNegative(t *testing.T) {
	resp := &LookupResponse{Query: "@spam", Status: requester.StatusNegative, Reason: types.ReasonRateLimited, RetryAfter: 30}

	var reason, retry string
	for _, row := range resp.Rows() {
		switch row[0] {
		case "reason":
			reason = row[1]
		case "retry_after":
			retry = row[1]
		case "id":
			t.Error("negative result should not render profile rows")
		}
	}
	if reason != string(types.ReasonRateLimited) || retry != "30s" {
		t.Errorf("reason = %q, retry_after = %q", reason, retry)
	}
}

func TestHistoryRows(t *testing.T) {
	rows := HistoryRows{
		{Query: "alice", Total: 3, Profiles: 2, Errors: 1, Reasons: map[string]int{"rate-limited": 1, "fault": 0}},
	}.Rows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0][0] != "alice" || rows[0][1] != "3" || rows[0][4] != "fault=0,rate-limited=1" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestBuildProvider(t *testing.T) {
	fixtures := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(fixtures, []byte(testFixtures), 0o644); err != nil {
		t.Fatal(err)
	}

	p, closeFn, err := buildProvider(config.ProviderConfig{Type: config.ProviderStatic, Fixtures: fixtures})
	if err != nil {
		t.Fatalf("static provider: %v", err)
	}
	defer func() { _ = closeFn() }()

	profile, err := p.Lookup(context.Background(), "@alice")
	if err != nil || profile == nil || profile.ID != 1001 {
		t.Fatalf("Lookup(@alice) = %+v, %v", profile, err)
	}
	// The guard rejects short queries before the fixture table sees them.
	if _, err := p.Lookup(context.Background(), "@al"); err == nil {
		t.Error("expected short query to be rejected")
	}

	if _, _, err := buildProvider(config.ProviderConfig{Type: config.ProviderBotAPI}); err == nil {
		t.Error("expected error for botapi provider without token")
	}
	if _, _, err := buildProvider(config.ProviderConfig{Type: "ldap"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBuildArchive(t *testing.T) {
	ctx := context.Background()

	a, err := buildArchive(ctx, config.ArchiveConfig{})
	if err != nil || a != nil {
		t.Fatalf("no backend should yield nil archive, got %v, %v", a, err)
	}

	a, err = buildArchive(ctx, config.ArchiveConfig{Dataset: "courier", Backend: config.BackendFS, Path: t.TempDir()})
	if err != nil || a == nil {
		t.Fatalf("fs archive: %v", err)
	}

	if _, err := buildArchive(ctx, config.ArchiveConfig{Backend: "gcs"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBuildAdapter(t *testing.T) {
	ad, err := buildAdapter(config.AdapterConfig{})
	if err != nil || ad != nil {
		t.Fatalf("no type should yield nil adapter, got %v, %v", ad, err)
	}

	retries := 1
	for _, typ := range []string{config.AdapterWebhook, config.AdapterRedis} {
		url := "https://hooks.example.com"
		if typ == config.AdapterRedis {
			url = "redis://localhost:6379"
		}
		ad, err := buildAdapter(config.AdapterConfig{Type: typ, URL: url, Retries: &retries})
		if err != nil {
			t.Fatalf("%s adapter: %v", typ, err)
		}
		_ = ad.Close()
	}

	if _, err := buildAdapter(config.AdapterConfig{Type: "kafka", URL: "x"}); err == nil {
		t.Error("expected error for unknown adapter")
	}
}

// newTestApp runs commands without os.Exit on cli.Exit errors.
func newTestApp(commands ...*cli.Command) *cli.App {
	return &cli.App{
		Name:           "courier-test",
		Commands:       commands,
		ExitErrHandler: func(*cli.Context, error) {},
		Writer:         &strings.Builder{},
		ErrWriter:      &strings.Builder{},
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestLookupAndRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	mailboxDir := filepath.Join(root, "mailbox")
	archiveDir := filepath.Join(root, "archive")
	if err := os.Mkdir(mailboxDir, 0o755); err != nil {
		t.Fatal(err)
	}
	fixtures := filepath.Join(root, "fixtures.yaml")
	if err := os.WriteFile(fixtures, []byte(testFixtures), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(root, "courier.yaml")
	cfgYAML := `mailbox:
  dir: ` + mailboxDir + `
requester:
  timeout: 2s
  attempts: 1
responder:
  scan_interval: 10ms
  no_heartbeat: true
provider:
  type: static
  fixtures: ` + fixtures + `
archive:
  backend: fs
  path: ` + archiveDir + `
log:
  level: error
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Resolve(cfgPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	loop, closeAll, err := buildLoop(ctx, cfg)
	if err != nil {
		t.Fatalf("buildLoop: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
		closeAll()
	}()

	app := newTestApp(LookupCommand())
	tests := []struct {
		query string
		want  int
	}{
		{"@alice", exitVerified},
		{"@wonderland_news", exitNegative},
		{"@nobody_here", exitNegative},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			err := app.Run([]string{"courier", "lookup", "--config", cfgPath, "--format", "json", tt.query})
			if got := exitCode(err); got != tt.want {
				t.Errorf("lookup %s exit = %d (%v), want %d", tt.query, got, err, tt.want)
			}
		})
	}

	// Lookups are archived after the response is written; wait for them.
	archive, err := buildArchive(ctx, cfg.Archive)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats, err := courierlode.QueryCounts(ctx, archive.Dataset(), courierlode.Filter{Query: "alice"})
		if err == nil && len(stats) == 1 && stats[0].Profiles == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("archive never recorded @alice: %v, %v", stats, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLookup_UnavailableWithoutResponder(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(LookupCommand())

	err := app.Run([]string{"courier", "lookup", "--mailbox", dir, "--timeout", "50ms", "--poll-interval", "10ms", "--attempts", "1", "--format", "json", "@alice"})
	if got := exitCode(err); got != exitUnavailable {
		t.Errorf("exit = %d (%v), want %d", got, err, exitUnavailable)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("timed-out lookup should leave no files, found %d", len(entries))
	}
}

func TestLookup_MissingQuery(t *testing.T) {
	err := newTestApp(LookupCommand()).Run([]string{"courier", "lookup", "--mailbox", t.TempDir()})
	if got := exitCode(err); got != exitUnavailable {
		t.Errorf("exit = %d, want %d", got, exitUnavailable)
	}
}

func TestSweep_RejectsTUI(t *testing.T) {
	err := newTestApp(SweepCommand()).Run([]string{"courier", "sweep", "--mailbox", t.TempDir(), "--tui"})
	if err == nil || !strings.Contains(err.Error(), "--tui is not supported") {
		t.Errorf("expected --tui rejection, got %v", err)
	}
}

func TestSweep_DryRun(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "ubresp_00000000-0000-4000-8000-000000000000.json")
	if err := os.WriteFile(stale, []byte(`{"error":"fault"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	app := newTestApp(SweepCommand())
	if err := app.Run([]string{"courier", "sweep", "--mailbox", dir, "--dry-run", "--format", "json"}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Fatalf("dry run removed the file: %v", err)
	}

	if err := app.Run([]string{"courier", "sweep", "--mailbox", dir, "--format", "json"}); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("sweep should remove the stale response, stat err = %v", err)
	}
}

func TestHistory_NoArchive(t *testing.T) {
	err := newTestApp(HistoryCommand()).Run([]string{"courier", "history", "--format", "json"})
	if got := exitCode(err); got != 1 {
		t.Errorf("exit = %d (%v), want 1", got, err)
	}
}

func TestHistory_InvalidDay(t *testing.T) {
	err := newTestApp(HistoryCommand()).Run([]string{"courier", "history", "--day", "yesterday"})
	if err == nil || !strings.Contains(err.Error(), "invalid --day") {
		t.Errorf("expected invalid day error, got %v", err)
	}
}

func runVersion(t *testing.T, args ...string) VersionResponse {
	t.Helper()
	var out strings.Builder
	app := newTestApp(VersionCommand("abc123"))
	app.Writer = &out
	if err := app.Run(append([]string{"courier", "version", "--format", "json"}, args...)); err != nil {
		t.Fatalf("version: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal([]byte(out.String()), &resp); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	return resp
}

func TestVersion(t *testing.T) {
	resp := runVersion(t)
	if resp.Version != types.Version || resp.Commit != "abc123" || resp.GoVersion == "" {
		t.Errorf("version = %+v", resp)
	}
	if resp.Responder != nil {
		t.Errorf("responder reported without a mailbox: %+v", resp.Responder)
	}
}

func TestVersion_Responder(t *testing.T) {
	root := t.TempDir()
	dir, err := mailbox.Open(root, mailbox.DefaultPrefixes())
	if err != nil {
		t.Fatal(err)
	}

	if resp := runVersion(t, "--mailbox", root); resp.Responder != nil {
		t.Errorf("no heartbeat should leave responder unset, got %+v", resp.Responder)
	}

	for _, tt := range []struct {
		contract   string
		compatible bool
	}{
		{types.ContractVersion, true},
		{"0.0.1", false},
	} {
		if err := dir.WriteHeartbeat(&mailbox.Heartbeat{
			ContractVersion: tt.contract,
			PID:             4242,
			Hostname:        "bot-1",
			StartedAt:       time.Now(),
			LastScan:        time.Now(),
		}); err != nil {
			t.Fatal(err)
		}
		want := &ResponderVersion{
			ContractVersion: tt.contract,
			Compatible:      tt.compatible,
			PID:             4242,
			Hostname:        "bot-1",
		}
		if diff := cmp.Diff(want, runVersion(t, "--mailbox", root).Responder); diff != "" {
			t.Errorf("contract %s (-want +got):\n%s", tt.contract, diff)
		}
	}
}
