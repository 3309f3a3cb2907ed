package requester

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/courier/types"
)

// Status is the business-level outcome of a verification.
type Status string

const (
	// StatusVerified means the identity resolved to a profile.
	StatusVerified Status = "verified"
	// StatusNegative means the responder answered with a failure reason.
	StatusNegative Status = "negative"
	// StatusUnavailable means no answer could be obtained.
	StatusUnavailable Status = "unavailable"
)

// Looker is the lookup surface Verify needs. *Client implements it.
type Looker interface {
	Lookup(ctx context.Context, query string) (*types.LookupResult, error)
}

// Verification is the outcome of Verify. It never carries a panic.
type Verification struct {
	Status  Status
	Profile *types.Profile
	// Reason is set for StatusNegative.
	Reason     types.Reason
	RetryAfter int
	// Err is set for StatusUnavailable.
	Err error
}

// Verify runs one lookup and folds every outcome into a Verification.
// Transport failures degrade to StatusUnavailable instead of propagating.
func Verify(ctx context.Context, l Looker, query string) (v Verification) {
	defer func() {
		if r := recover(); r != nil {
			v = Verification{Status: StatusUnavailable, Err: fmt.Errorf("lookup panicked: %v", r)}
		}
	}()

	result, err := l.Lookup(ctx, query)
	switch {
	case err != nil:
		return Verification{Status: StatusUnavailable, Err: err}
	case result == nil:
		return Verification{Status: StatusUnavailable, Err: errors.New("empty lookup result")}
	case result.OK():
		return Verification{Status: StatusVerified, Profile: result.Profile}
	case result.Error != nil:
		return Verification{
			Status:     StatusNegative,
			Reason:     result.Error.Reason,
			RetryAfter: result.Error.RetryAfter,
		}
	default:
		return Verification{Status: StatusUnavailable, Err: errors.New("lookup result without profile or error")}
	}
}
