// Package static implements a profile provider backed by a YAML fixture
// file, for development mailboxes and tests.
//
// Fixture format:
//
//	profiles:
//	  - id: 42
//	    username: alice
//	    first_name: Alice
//	    usernames: [alice, alice_alt]
//	not_users: [news_channel]
//	rate_limited:
//	  busy_user: 30
//
// Handles match case-insensitively with or without a leading '@'; numeric
// identifiers match profile ids. Anything else is an invalid identifier.
package static

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/courier/provider"
	"github.com/pithecene-io/courier/types"
)

// Fixture is one profile entry of a fixture file.
type Fixture struct {
	ID              int64    `yaml:"id"`
	Username        string   `yaml:"username"`
	FirstName       string   `yaml:"first_name"`
	LastName        string   `yaml:"last_name"`
	IsBot           bool     `yaml:"is_bot"`
	AccountCreation string   `yaml:"account_creation"`
	Usernames       []string `yaml:"usernames"`
}

// File is the top-level fixture document.
type File struct {
	Profiles    []Fixture      `yaml:"profiles"`
	NotUsers    []string       `yaml:"not_users"`
	RateLimited map[string]int `yaml:"rate_limited"`
}

// Provider serves profiles from memory. Immutable after construction.
type Provider struct {
	byHandle    map[string]*Fixture
	byID        map[int64]*Fixture
	notUsers    map[string]bool
	rateLimited map[string]int
}

// Load reads a fixture file from path.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse builds a provider from fixture YAML.
func Parse(data []byte) (*Provider, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return New(f)
}

// New builds a provider from a decoded fixture document.
// Returns an error on duplicate ids or handles.
func New(f File) (*Provider, error) {
	p := &Provider{
		byHandle:    make(map[string]*Fixture),
		byID:        make(map[int64]*Fixture),
		notUsers:    make(map[string]bool),
		rateLimited: make(map[string]int),
	}

	for i := range f.Profiles {
		fx := &f.Profiles[i]
		if fx.ID == 0 {
			return nil, fmt.Errorf("profile %d: id is required", i)
		}
		if _, dup := p.byID[fx.ID]; dup {
			return nil, fmt.Errorf("profile %d: duplicate id %d", i, fx.ID)
		}
		p.byID[fx.ID] = fx

		for _, h := range handles(fx) {
			key := normalize(h)
			if _, dup := p.byHandle[key]; dup {
				return nil, fmt.Errorf("profile %d: duplicate handle %q", i, h)
			}
			p.byHandle[key] = fx
		}
	}
	for _, h := range f.NotUsers {
		p.notUsers[normalize(h)] = true
	}
	for h, secs := range f.RateLimited {
		p.rateLimited[normalize(h)] = secs
	}
	return p, nil
}

// handles returns the distinct handles of a fixture.
func handles(fx *Fixture) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range append([]string{fx.Username}, fx.Usernames...) {
		if h == "" || seen[normalize(h)] {
			continue
		}
		seen[normalize(h)] = true
		out = append(out, h)
	}
	return out
}

func normalize(handle string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(handle), "@"))
}

// Lookup resolves identifier against the fixtures.
func (p *Provider) Lookup(ctx context.Context, identifier string) (*types.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.Errorf(provider.KindFault, "lookup canceled: %w", err)
	}

	key := normalize(identifier)
	if secs, ok := p.rateLimited[key]; ok {
		return nil, &provider.Error{
			Kind:       provider.KindRateLimited,
			RetryAfter: secs,
			Err:        fmt.Errorf("flood wait %ds", secs),
		}
	}
	if p.notUsers[key] {
		return nil, provider.Errorf(provider.KindNotUser, "%s is not a user", identifier)
	}

	fx, ok := p.byHandle[key]
	if !ok {
		if id, err := strconv.ParseInt(key, 10, 64); err == nil {
			fx, ok = p.byID[id]
		}
	}
	if !ok {
		return nil, provider.Errorf(provider.KindInvalidIdentifier, "no fixture for %q", identifier)
	}
	return toProfile(fx), nil
}

// toProfile returns a fresh profile so callers cannot mutate fixtures.
func toProfile(fx *Fixture) *types.Profile {
	profile := &types.Profile{
		ID:              fx.ID,
		FirstName:       fx.FirstName,
		LastName:        fx.LastName,
		IsBot:           fx.IsBot,
		AccountCreation: fx.AccountCreation,
		AllUsernames:    handles(fx),
	}
	if profile.AccountCreation == "" {
		profile.AccountCreation = types.AccountCreationUnknown
	}
	if profile.AllUsernames == nil {
		profile.AllUsernames = []string{}
	}
	if fx.Username != "" {
		username := fx.Username
		profile.Username = &username
	}
	return profile
}

// Len returns the number of profiles loaded.
func (p *Provider) Len() int {
	return len(p.byID)
}

// Verify Provider implements the provider interface.
var _ provider.Provider = (*Provider)(nil)
