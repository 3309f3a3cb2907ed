package responder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/pithecene-io/courier/adapter"
	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/policy"
	"github.com/pithecene-io/courier/provider"
	"github.com/pithecene-io/courier/types"
)

// handling tracks one request through its states.
type handling struct {
	path          string
	correlationID string
	query         string
	responseName  string
	state         State
	startedAt     time.Time
}

func (h *handling) fields() map[string]any {
	f := map[string]any{
		"request": filepath.Base(h.path),
		"state":   h.state.String(),
	}
	if h.correlationID != "" {
		f["correlation_id"] = h.correlationID
	}
	if h.query != "" {
		f["query"] = h.query
	}
	return f
}

func (h *handling) with(extra map[string]any) map[string]any {
	f := h.fields()
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// handle runs the state machine for one request file.
func (l *Loop) handle(ctx context.Context, path string) {
	_, id := l.dir.Prefixes().Classify(filepath.Base(path))
	h := &handling{
		path:          path,
		correlationID: id,
		state:         StateDiscovered,
		startedAt:     time.Now(),
	}

	l.metrics.IncHandlerStarted()
	l.inFlight.Add(1)
	defer l.inFlight.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			l.metrics.IncRecovered()
			if h.state.Terminal() {
				l.logger.Error("handler panicked after completion", h.with(map[string]any{"panic": fmt.Sprint(r)}))
				return
			}
			l.internalError(h, fmt.Errorf("panic: %v", r))
		}
	}()

	h.state = StateValidating
	req, err := l.readRequest(context.WithoutCancel(ctx), path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		// Claimed elsewhere between listing and read
		l.logger.Debug("request vanished", h.fields())
		l.finish(h, StateFailed)
		return
	case errors.Is(err, fs.ErrPermission):
		// Still locked after retries; left in place for a later tick
		l.logger.Error("request not readable", h.with(map[string]any{"error": err.Error()}))
		l.finish(h, StateFailed)
		return
	case errors.Is(err, types.ErrValidation):
		l.reject(h, err)
		return
	default:
		l.internalError(h, fmt.Errorf("read request: %w", err))
		return
	}
	h.query = req.Query

	if _, err := mailbox.ResolveResponsePath(l.dir.Root(), l.dir.Prefixes(), req.ResponseName); err != nil {
		l.reject(h, err)
		return
	}
	h.responseName = req.ResponseName
	h.state = StateInProgress

	// Removed before the lookup so a slow provider never sees it twice
	if err := iox.RemoveIfExists(path); err != nil {
		l.logger.Warn("request remove failed", h.with(map[string]any{"error": err.Error()}))
	}

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.handlerTimeout)
	defer cancel()

	l.logger.Info("lookup started", h.fields())
	profile, lookupErr := l.provider.Lookup(lookupCtx, req.Query)
	result := provider.ResultFor(profile, lookupErr)
	if lookupErr != nil {
		l.metrics.IncProviderError(string(result.Error.Reason))
		l.logger.Warn("lookup failed", h.with(map[string]any{
			"reason": string(result.Error.Reason),
			"error":  lookupErr.Error(),
		}))
	}

	if err := l.dir.WriteResponse(h.responseName, result); err != nil {
		if errors.Is(err, fs.ErrExist) {
			l.logger.Debug("response already exists", h.fields())
		} else {
			l.logger.Error("response write failed", h.with(map[string]any{"error": err.Error()}))
		}
		l.finish(h, StateFailed)
		return
	}

	l.finish(h, StateResponded)
	l.publish(lookupCtx, types.NewLookupRecord(h.correlationID, h.query, result, h.startedAt, time.Now()))
}

// readRequestFile is replaced in tests to simulate locked request files.
var readRequestFile = (*mailbox.Dir).ReadRequest

// readRequest reads a request file, retrying permission errors only.
func (l *Loop) readRequest(ctx context.Context, path string) (mailbox.Request, error) {
	var req mailbox.Request
	err := l.readRetry.Do(ctx, func(int) error {
		var err error
		req, err = readRequestFile(l.dir, path)
		if err != nil && !errors.Is(err, fs.ErrPermission) {
			return policy.Permanent(err)
		}
		return err
	})
	var exhausted *types.ExhaustedError
	if errors.As(err, &exhausted) {
		err = exhausted.Err
	}
	return req, err
}

// reject drops an invalid request without answering it.
func (l *Loop) reject(h *handling, cause error) {
	if err := iox.RemoveIfExists(h.path); err != nil {
		l.logger.Warn("request remove failed", h.with(map[string]any{"error": err.Error()}))
	}
	l.logger.Error("request rejected", h.with(map[string]any{"error": cause.Error()}))
	l.finish(h, StateRejected)
}

// internalError contains an unexpected failure: the request is removed and,
// if its response name is known, an internal-error response is attempted.
func (l *Loop) internalError(h *handling, cause error) {
	l.logger.Error("handler failed", h.with(map[string]any{"error": cause.Error()}))

	if err := iox.RemoveIfExists(h.path); err != nil {
		l.logger.Warn("request remove failed", h.with(map[string]any{"error": err.Error()}))
	}

	if h.responseName != "" {
		err := l.dir.WriteResponse(h.responseName, types.ErrorResult(types.ReasonInternal, 0))
		switch {
		case err == nil:
			l.finish(h, StateResponded)
			return
		case errors.Is(err, fs.ErrExist):
			l.logger.Warn("response already exists, not overwritten", h.fields())
		default:
			l.logger.Error("error response write failed", h.with(map[string]any{"error": err.Error()}))
		}
	}
	l.finish(h, StateFailed)
}

// finish records the terminal state.
func (l *Loop) finish(h *handling, state State) {
	h.state = state
	switch state {
	case StateResponded:
		l.responded.Add(1)
		l.metrics.IncResponded()
		l.logger.Info("response written", h.with(map[string]any{
			"duration_ms": time.Since(h.startedAt).Milliseconds(),
		}))
	case StateRejected:
		l.rejected.Add(1)
		l.metrics.IncRejected()
	case StateFailed:
		l.failed.Add(1)
		l.metrics.IncFailed()
	}
}

// publish hands a record to the archive and the adapter.
// Failures are logged and counted only.
func (l *Loop) publish(ctx context.Context, rec *types.LookupRecord) {
	if l.recorder != nil {
		if err := l.recorder.Record(ctx, rec); err != nil {
			l.metrics.IncArchiveWriteFailure()
			l.logger.Warn("archive write failed", map[string]any{
				"correlation_id": rec.CorrelationID,
				"error":          err.Error(),
			})
		} else {
			l.metrics.IncArchiveWriteSuccess()
		}
	}

	if l.adapter != nil {
		if err := l.adapter.Publish(ctx, adapter.NewLookupCompletedEvent(rec)); err != nil {
			l.metrics.IncNotifyFailure()
			l.logger.Warn("notification failed", map[string]any{
				"correlation_id": rec.CorrelationID,
				"error":          err.Error(),
			})
		} else {
			l.metrics.IncNotifySuccess()
		}
	}
}
