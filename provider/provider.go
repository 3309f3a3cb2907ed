// Package provider defines the profile lookup collaborator used by the
// responder.
//
// A Provider resolves one identifier (handle or numeric id) into a profile.
// Failures are reported as *Error so the responder can map them onto the
// wire reasons of CONTRACT_MAILBOX.md without inspecting messages.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/courier/types"
)

// Provider resolves identifiers into profiles.
// Implementations must be safe for concurrent use.
type Provider interface {
	Lookup(ctx context.Context, identifier string) (*types.Profile, error)
}

// Func adapts a plain function into a Provider.
type Func func(ctx context.Context, identifier string) (*types.Profile, error)

// Lookup calls f.
func (f Func) Lookup(ctx context.Context, identifier string) (*types.Profile, error) {
	return f(ctx, identifier)
}

// Kind classifies a provider failure.
type Kind int

const (
	// KindFault is any failure without a more specific kind.
	KindFault Kind = iota
	// KindInvalidIdentifier means the identifier does not resolve.
	KindInvalidIdentifier
	// KindNotUser means the identifier resolves to a group or channel.
	KindNotUser
	// KindRateLimited means the platform asked the caller to back off.
	KindRateLimited
	// KindQueryTooShort means the identifier was rejected before lookup.
	KindQueryTooShort
)

var kindNames = map[Kind]string{
	KindFault:             "fault",
	KindInvalidIdentifier: "invalid_identifier",
	KindNotUser:           "not_user",
	KindRateLimited:       "rate_limited",
	KindQueryTooShort:     "query_too_short",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified provider failure.
type Error struct {
	Kind Kind
	// RetryAfter is the requested back-off in seconds (KindRateLimited only).
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "provider: " + e.Kind.String()
	}
	return fmt.Sprintf("provider: %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns the wire reason for the failure.
func (e *Error) Reason() types.Reason {
	switch e.Kind {
	case KindInvalidIdentifier:
		return types.ReasonInvalidIdentifier
	case KindNotUser:
		return types.ReasonNotUser
	case KindRateLimited:
		return types.ReasonRateLimited
	case KindQueryTooShort:
		return types.ReasonQueryTooShort
	default:
		return types.ReasonFault
	}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// ResultFor converts a lookup outcome into the result written to the
// mailbox. Unclassified errors become ReasonFault. A nil profile with a nil
// error is a provider bug and also maps to ReasonFault.
func ResultFor(profile *types.Profile, err error) *types.LookupResult {
	if err == nil {
		if profile == nil {
			return types.ErrorResult(types.ReasonFault, 0)
		}
		return types.ProfileResult(profile)
	}

	var perr *Error
	if errors.As(err, &perr) {
		return types.ErrorResult(perr.Reason(), perr.RetryAfter)
	}
	return types.ErrorResult(types.ReasonFault, 0)
}

// MinQueryLength is the shortest identifier Guard forwards, not counting
// leading '@' characters.
const MinQueryLength = 4

// Guard wraps a provider with identifier pre-checks.
type Guard struct {
	next Provider
}

// NewGuard wraps next.
func NewGuard(next Provider) *Guard {
	return &Guard{next: next}
}

// Lookup rejects short identifiers with KindQueryTooShort and forwards the
// rest unchanged.
func (g *Guard) Lookup(ctx context.Context, identifier string) (*types.Profile, error) {
	bare := strings.TrimLeft(strings.TrimSpace(identifier), "@")
	if len([]rune(bare)) < MinQueryLength {
		return nil, Errorf(KindQueryTooShort, "%q shorter than %d characters", identifier, MinQueryLength)
	}
	return g.next.Lookup(ctx, identifier)
}
