package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pithecene-io/courier/adapter"
	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/types"
)

func testEvent() *adapter.LookupCompletedEvent {
	return &adapter.LookupCompletedEvent{
		ContractVersion: "0.3.0",
		EventType:       adapter.EventTypeLookupCompleted,
		CorrelationID:   "0f8fad5b-d9cb-469f-a165-70867728950e",
		Query:           "@doesnotexist",
		Outcome:         "error",
		Error:           "invalid-identifier",
		Timestamp:       "2026-02-07T12:00:00Z",
		DurationMs:      15,
	}
}

// statusServer replies with codes in order, repeating the last one.
func statusServer(t *testing.T, codes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1))
		w.WriteHeader(codes[min(n, len(codes))-1])
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { iox.DiscardClose(a) })
	return a
}

func TestPublish_Request(t *testing.T) {
	var (
		mu      sync.Mutex
		header  http.Header
		method  string
		payload adapter.LookupCompletedEvent
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, header = r.Method, r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{
		URL:     ts.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPost {
		t.Errorf("method = %s, want POST", method)
	}
	for name, want := range map[string]string{
		"Content-Type":      "application/json",
		"Authorization":     "Bearer test-token",
		HeaderEvent:         adapter.EventTypeLookupCompleted,
		HeaderCorrelationID: "0f8fad5b-d9cb-469f-a165-70867728950e",
	} {
		if got := header.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if diff := cmp.Diff(*testEvent(), payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		codes     []int
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{"200", []int{200}, 3, false, 1},
		{"201", []int{201}, 3, false, 1},
		{"204", []int{204}, 3, false, 1},
		{"500 then 200", []int{500, 500, 200}, 3, false, 3},
		{"429 then 200", []int{429, 200}, 3, false, 2},
		{"400 not retried", []int{400}, 3, true, 1},
		{"401 not retried", []int{401}, 3, true, 1},
		{"404 not retried", []int{404}, 3, true, 1},
		{"502 exhausts", []int{502}, 2, true, 3},
		{"no retries", []int{503}, 0, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, calls := statusServer(t, tt.codes...)
			a := newAdapter(t, Config{URL: ts.URL, Retries: tt.retries})

			err := a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestPublish_ExhaustedErrorCarriesStatus(t *testing.T) {
	ts, _ := statusServer(t, http.StatusServiceUnavailable)
	a := newAdapter(t, Config{URL: ts.URL, Retries: 1})

	err := a.Publish(t.Context(), testEvent())

	var exhausted *types.ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 2 {
		t.Fatalf("expected exhaustion after 2 attempts, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected wrapped 503, got %v", err)
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	a := newAdapter(t, Config{URL: ts.URL, Timeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	if err := a.Publish(ctx, testEvent()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestStatusError_Retriable(t *testing.T) {
	for code, want := range map[int]bool{400: false, 404: false, 409: false, 429: true, 500: true, 503: true} {
		if got := (&StatusError{Code: code}).Retriable(); got != want {
			t.Errorf("Retriable(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	a, err := New(Config{URL: "http://example.com", Retries: 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.config.Timeout != DefaultTimeout || a.config.Retries != 5 {
		t.Errorf("config = %+v", a.config)
	}
}
