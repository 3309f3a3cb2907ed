// Package botapi implements a profile provider over a Bot-API-compatible
// getChat endpoint.
//
// Request: GET <base>/bot<token>/getChat?chat_id=<identifier>
//
// Failure mapping:
//   - ok=false with error_code 400: invalid identifier
//   - 429 with parameters.retry_after: rate limited
//   - resolved chat whose type is not "private": not a user
//   - anything else (transport, 5xx, undecodable body): fault
package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/provider"
	"github.com/pithecene-io/courier/types"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// maxBodySize bounds a getChat response body.
const maxBodySize = 1 << 20

// Config configures the Bot API provider.
type Config struct {
	// BaseURL is the API root (default DefaultBaseURL).
	BaseURL string
	// Token is the bot token (required).
	Token string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
}

// Provider resolves identifiers through getChat.
type Provider struct {
	config Config
	client *http.Client
}

// New creates a Bot API provider from the given config.
// Returns an error if the token is empty or the base URL does not parse.
func New(cfg Config) (*Provider, error) {
	if cfg.Token == "" {
		return nil, errors.New("botapi provider requires a token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Provider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// chat is the subset of the getChat result the provider reads.
type chat struct {
	ID              int64    `json:"id"`
	Type            string   `json:"type"`
	Username        string   `json:"username"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	IsBot           bool     `json:"is_bot"`
	ActiveUsernames []string `json:"active_usernames"`
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Lookup resolves identifier into a profile.
func (p *Provider) Lookup(ctx context.Context, identifier string) (*types.Profile, error) {
	chatID := ChatID(identifier)
	endpoint := fmt.Sprintf("%s/bot%s/getChat?chat_id=%s",
		strings.TrimRight(p.config.BaseURL, "/"), p.config.Token, url.QueryEscape(chatID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, provider.Errorf(provider.KindFault, "create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// The URL carries the token; report the transport error without it.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, provider.Errorf(provider.KindFault, "request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, provider.Errorf(provider.KindFault, "read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, provider.Errorf(provider.KindFault, "decode response (status %d): %w", resp.StatusCode, err)
	}

	if !env.OK {
		return nil, classify(resp.StatusCode, &env)
	}

	var c chat
	if err := json.Unmarshal(env.Result, &c); err != nil {
		return nil, provider.Errorf(provider.KindFault, "decode chat: %w", err)
	}
	if c.Type != "private" {
		return nil, provider.Errorf(provider.KindNotUser, "%s is a %s chat", chatID, c.Type)
	}
	return toProfile(&c), nil
}

// classify maps an ok=false envelope onto a provider error.
func classify(status int, env *envelope) *provider.Error {
	code := env.ErrorCode
	if code == 0 {
		code = status
	}
	cause := errors.New(env.Description)

	switch {
	case code == http.StatusTooManyRequests:
		retryAfter := 0
		if env.Parameters != nil {
			retryAfter = env.Parameters.RetryAfter
		}
		return &provider.Error{Kind: provider.KindRateLimited, RetryAfter: retryAfter, Err: cause}
	case code == http.StatusBadRequest:
		return &provider.Error{Kind: provider.KindInvalidIdentifier, Err: cause}
	default:
		return &provider.Error{Kind: provider.KindFault, Err: fmt.Errorf("error_code %d: %w", code, cause)}
	}
}

// toProfile converts a private chat into the wire profile.
// Active usernames win over the single primary username.
func toProfile(c *chat) *types.Profile {
	profile := &types.Profile{
		ID:              c.ID,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		IsBot:           c.IsBot,
		AccountCreation: types.AccountCreationUnknown,
		AllUsernames:    []string{},
	}
	if c.Username != "" {
		username := c.Username
		profile.Username = &username
	}

	switch {
	case len(c.ActiveUsernames) > 0:
		profile.AllUsernames = append(profile.AllUsernames, c.ActiveUsernames...)
	case c.Username != "":
		profile.AllUsernames = append(profile.AllUsernames, c.Username)
	}
	return profile
}

// ChatID returns the getChat chat_id for an identifier.
// Numeric ids pass through; handles are given a single leading '@'.
func ChatID(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if _, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return identifier
	}
	return "@" + strings.TrimLeft(identifier, "@")
}

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Verify Provider implements the provider interface.
var _ provider.Provider = (*Provider)(nil)
