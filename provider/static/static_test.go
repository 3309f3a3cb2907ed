package static

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pithecene-io/courier/provider"
	"github.com/pithecene-io/courier/types"
)

const fixtures = `
profiles:
  - id: 42
    username: alice
    first_name: Alice
    last_name: Liddell
    usernames: [alice, Alice_Alt]
  - id: 7
    first_name: Nameless
    is_bot: true
    account_creation: "2019-03"
not_users: ["@news_channel"]
rate_limited:
  busy_user: 30
`

func loadFixtures(t *testing.T) *Provider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(path, []byte(fixtures), 0o644); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return p
}

func TestLookup_Profiles(t *testing.T) {
	p := loadFixtures(t)
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	alice := "alice"
	aliceProfile := &types.Profile{
		ID:              42,
		Username:        &alice,
		FirstName:       "Alice",
		LastName:        "Liddell",
		AccountCreation: types.AccountCreationUnknown,
		AllUsernames:    []string{"alice", "Alice_Alt"},
	}
	nameless := &types.Profile{
		ID:              7,
		FirstName:       "Nameless",
		IsBot:           true,
		AccountCreation: "2019-03",
		AllUsernames:    []string{},
	}

	tests := []struct {
		query string
		want  *types.Profile
	}{
		{"@alice", aliceProfile},
		{"ALICE", aliceProfile},
		{"@alice_alt", aliceProfile},
		{"42", aliceProfile},
		{"7", nameless},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := p.Lookup(t.Context(), tt.query)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("profile mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLookup_Failures(t *testing.T) {
	p := loadFixtures(t)

	tests := []struct {
		query          string
		wantKind       provider.Kind
		wantRetryAfter int
	}{
		{"@doesnotexist", provider.KindInvalidIdentifier, 0},
		{"12345", provider.KindInvalidIdentifier, 0},
		{"news_channel", provider.KindNotUser, 0},
		{"@busy_user", provider.KindRateLimited, 30},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := p.Lookup(t.Context(), tt.query)

			var perr *provider.Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *provider.Error, got %v", err)
			}
			if perr.Kind != tt.wantKind || perr.RetryAfter != tt.wantRetryAfter {
				t.Errorf("got kind %v retry %d, want %v retry %d",
					perr.Kind, perr.RetryAfter, tt.wantKind, tt.wantRetryAfter)
			}
		})
	}
}

func TestLookup_ReturnsCopies(t *testing.T) {
	p := loadFixtures(t)

	first, err := p.Lookup(t.Context(), "@alice")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	first.AllUsernames[0] = "mallory"
	*first.Username = "mallory"

	second, err := p.Lookup(t.Context(), "@alice")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if *second.Username != "alice" || second.AllUsernames[0] != "alice" {
		t.Errorf("fixture mutated through returned profile: %+v", second)
	}
}

func TestLookup_CanceledContext(t *testing.T) {
	p := loadFixtures(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := p.Lookup(ctx, "@alice")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_Duplicates(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate id", "profiles:\n  - id: 1\n    username: a1\n  - id: 1\n    username: b1\n"},
		{"duplicate handle", "profiles:\n  - id: 1\n    username: same\n  - id: 2\n    username: SAME\n"},
		{"missing id", "profiles:\n  - username: nobody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
