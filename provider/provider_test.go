package provider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pithecene-io/courier/types"
)

func TestError_Reason(t *testing.T) {
	tests := []struct {
		kind Kind
		want types.Reason
	}{
		{KindInvalidIdentifier, types.ReasonInvalidIdentifier},
		{KindNotUser, types.ReasonNotUser},
		{KindRateLimited, types.ReasonRateLimited},
		{KindQueryTooShort, types.ReasonQueryTooShort},
		{KindFault, types.ReasonFault},
		{Kind(99), types.ReasonFault},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := &Error{Kind: tt.kind}
			if got := err.Reason(); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Kind: KindFault, Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestResultFor(t *testing.T) {
	alice := "alice"
	profile := &types.Profile{ID: 1, Username: &alice}

	t.Run("profile", func(t *testing.T) {
		got := ResultFor(profile, nil)
		if !got.OK() || got.Profile.ID != 1 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("rate limited keeps retry hint", func(t *testing.T) {
		got := ResultFor(nil, &Error{Kind: KindRateLimited, RetryAfter: 12})
		if got.Error == nil || got.Error.Reason != types.ReasonRateLimited || got.Error.RetryAfter != 12 {
			t.Errorf("got %+v", got.Error)
		}
	})

	t.Run("wrapped classified error", func(t *testing.T) {
		err := errors.Join(errors.New("context"), &Error{Kind: KindNotUser})
		got := ResultFor(nil, err)
		if got.Error == nil || got.Error.Reason != types.ReasonNotUser {
			t.Errorf("got %+v", got.Error)
		}
	})

	t.Run("unclassified error", func(t *testing.T) {
		got := ResultFor(nil, errors.New("boom"))
		if got.Error == nil || got.Error.Reason != types.ReasonFault {
			t.Errorf("got %+v", got.Error)
		}
	})

	t.Run("nil profile without error", func(t *testing.T) {
		got := ResultFor(nil, nil)
		if got.Error == nil || got.Error.Reason != types.ReasonFault {
			t.Errorf("got %+v", got)
		}
	})
}

func TestGuard(t *testing.T) {
	var calls int
	next := Func(func(_ context.Context, identifier string) (*types.Profile, error) {
		calls++
		return &types.Profile{ID: 7}, nil
	})
	guard := NewGuard(next)

	tests := []struct {
		name      string
		query     string
		wantShort bool
	}{
		{"handle", "@alice", false},
		{"bare handle", "alice", false},
		{"numeric id", "12345", false},
		{"short handle", "@bob", true},
		{"only at signs", "@@@@", true},
		{"short bare", "abc", true},
		{"multibyte counted by rune", "@éèêë", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls
			_, err := guard.Lookup(t.Context(), tt.query)

			var perr *Error
			isShort := errors.As(err, &perr) && perr.Kind == KindQueryTooShort
			if isShort != tt.wantShort {
				t.Fatalf("Lookup(%q) err = %v, wantShort %v", tt.query, err, tt.wantShort)
			}
			if forwarded := calls > before; forwarded == tt.wantShort {
				t.Errorf("forwarded = %v, want %v", forwarded, !tt.wantShort)
			}
		})
	}
}
