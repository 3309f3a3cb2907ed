// Package types defines the mailbox wire types shared by the requester and
// the responder per CONTRACT_MAILBOX.md.
//
//nolint:revive // types is a common Go package naming convention
package types

import "strconv"

// AccountCreationUnknown is reported when the platform exposes no
// account creation date for an identity.
const AccountCreationUnknown = "unknown"

// Profile is the success payload of a response file.
// JSON keys are part of the wire contract and must not change.
type Profile struct {
	// ID is the numeric platform identity.
	ID int64 `json:"id"`
	// Username is the primary handle, nil when the identity has none.
	Username *string `json:"username"`
	// FirstName is the display first name.
	FirstName string `json:"first_name"`
	// LastName is the display last name (may be empty).
	LastName string `json:"last_name"`
	// IsBot reports whether the identity is an automated account.
	IsBot bool `json:"is_bot"`
	// AccountCreation describes when the account was created.
	AccountCreation string `json:"account_creation"`
	// AllUsernames lists every active handle of the identity.
	AllUsernames []string `json:"all_usernames"`
}

// Reason is the failure kind carried by an error response.
// Unknown reasons received on the wire are preserved verbatim.
type Reason string

// Failure reasons written by the responder.
const (
	ReasonInvalidIdentifier Reason = "invalid-identifier"
	ReasonNotUser           Reason = "not-a-user"
	ReasonRateLimited       Reason = "rate-limited"
	ReasonQueryTooShort     Reason = "query-too-short"
	ReasonInternal          Reason = "internal-error"
	ReasonFault             Reason = "fault"
)

// Known reports whether r is one of the reasons the responder emits.
func (r Reason) Known() bool {
	switch r {
	case ReasonInvalidIdentifier, ReasonNotUser, ReasonRateLimited,
		ReasonQueryTooShort, ReasonInternal, ReasonFault:
		return true
	default:
		return false
	}
}

// LookupError is the negative result of a completed exchange.
// It is a value, not a Go error: the round trip itself succeeded.
type LookupError struct {
	Reason Reason `json:"error"`
	// RetryAfter is the wait in seconds requested by a rate-limited provider.
	RetryAfter int `json:"retry_after,omitempty"`
}

// String returns the reason, with the retry hint when present.
func (e LookupError) String() string {
	if e.RetryAfter > 0 {
		return string(e.Reason) + " (retry after " + strconv.Itoa(e.RetryAfter) + "s)"
	}
	return string(e.Reason)
}

// LookupResult is the outcome of one exchange.
// Exactly one of Profile and Error is set.
type LookupResult struct {
	Profile *Profile     `json:"profile,omitempty"`
	Error   *LookupError `json:"error,omitempty"`
}

// OK reports whether the result carries a profile.
func (r *LookupResult) OK() bool {
	return r != nil && r.Profile != nil
}

// ProfileResult wraps a profile as a successful result.
func ProfileResult(p *Profile) *LookupResult {
	return &LookupResult{Profile: p}
}

// ErrorResult wraps a reason as a negative result.
func ErrorResult(reason Reason, retryAfter int) *LookupResult {
	return &LookupResult{Error: &LookupError{Reason: reason, RetryAfter: retryAfter}}
}
