package requester

import (
	"context"
	"errors"
	"testing"

	"github.com/pithecene-io/courier/types"
)

type lookerFunc func(ctx context.Context, query string) (*types.LookupResult, error)

func (f lookerFunc) Lookup(ctx context.Context, query string) (*types.LookupResult, error) {
	return f(ctx, query)
}

func TestVerify(t *testing.T) {
	alice := "alice"
	profile := &types.Profile{ID: 42, Username: &alice}

	tests := []struct {
		name       string
		looker     lookerFunc
		wantStatus Status
		wantReason types.Reason
		wantErr    bool
	}{
		{
			name: "verified",
			looker: func(context.Context, string) (*types.LookupResult, error) {
				return types.ProfileResult(profile), nil
			},
			wantStatus: StatusVerified,
		},
		{
			name: "negative",
			looker: func(context.Context, string) (*types.LookupResult, error) {
				return types.ErrorResult(types.ReasonNotUser, 0), nil
			},
			wantStatus: StatusNegative,
			wantReason: types.ReasonNotUser,
		},
		{
			name: "timeout",
			looker: func(context.Context, string) (*types.LookupResult, error) {
				return nil, &types.ExhaustedError{Attempts: 3, Err: &types.TimeoutError{CorrelationID: "x"}}
			},
			wantStatus: StatusUnavailable,
			wantErr:    true,
		},
		{
			name: "nil result",
			looker: func(context.Context, string) (*types.LookupResult, error) {
				return nil, nil
			},
			wantStatus: StatusUnavailable,
			wantErr:    true,
		},
		{
			name: "panic",
			looker: func(context.Context, string) (*types.LookupResult, error) {
				panic("boom")
			},
			wantStatus: StatusUnavailable,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Verify(t.Context(), tt.looker, "@alice")
			if v.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", v.Status, tt.wantStatus)
			}
			if v.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", v.Reason, tt.wantReason)
			}
			if (v.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", v.Err, tt.wantErr)
			}
		})
	}
}

func TestVerify_TimeoutIsInspectable(t *testing.T) {
	looker := lookerFunc(func(context.Context, string) (*types.LookupResult, error) {
		return nil, &types.ExhaustedError{Attempts: 3, Err: &types.TimeoutError{CorrelationID: "x"}}
	})
	v := Verify(t.Context(), looker, "@alice")
	if !errors.Is(v.Err, types.ErrTimeout) {
		t.Errorf("expected ErrTimeout in Err, got %v", v.Err)
	}
}
