// Package metrics provides in-process counters for the requester and the
// responder.
//
// The Collector is a leaf package with no internal dependencies. Reasons are
// string-keyed so that this package stays free of the types package.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Requester
	LookupsStarted    int64 `json:"lookups_started"`
	Attempts          int64 `json:"attempts"`
	Timeouts          int64 `json:"timeouts"`
	LookupsExhausted  int64 `json:"lookups_exhausted"`
	ResponsesReceived int64 `json:"responses_received"`
	DecodeErrors      int64 `json:"decode_errors"`
	ReadErrors        int64 `json:"read_errors"`
	CleanupFailures   int64 `json:"cleanup_failures"`

	// Responder
	Scans           int64            `json:"scans"`
	ScanErrors      int64            `json:"scan_errors"`
	HandlersStarted int64            `json:"handlers_started"`
	Responded       int64            `json:"responded"`
	Rejected        int64            `json:"rejected"`
	Failed          int64            `json:"failed"`
	Recovered       int64            `json:"recovered"`
	ProviderErrors  map[string]int64 `json:"provider_errors"`

	// Sweeper
	OrphansSwept int64 `json:"orphans_swept"`
	SweepErrors  int64 `json:"sweep_errors"`

	// Downstream (archive, notifications)
	ArchiveWriteSuccess int64 `json:"archive_write_success"`
	ArchiveWriteFailure int64 `json:"archive_write_failure"`
	NotifySuccess       int64 `json:"notify_success"`
	NotifyFailure       int64 `json:"notify_failure"`

	// Dimensions (informational, set at construction)
	Component string `json:"component"`
	Provider  string `json:"provider,omitempty"`
}

// Collector accumulates counters for one process.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	lookupsStarted    int64
	attempts          int64
	timeouts          int64
	lookupsExhausted  int64
	responsesReceived int64
	decodeErrors      int64
	readErrors        int64
	cleanupFailures   int64

	scans           int64
	scanErrors      int64
	handlersStarted int64
	responded       int64
	rejected        int64
	failed          int64
	recovered       int64
	providerErrors  map[string]int64

	orphansSwept int64
	sweepErrors  int64

	archiveWriteSuccess int64
	archiveWriteFailure int64
	notifySuccess       int64
	notifyFailure       int64

	component string
	provider  string
}

// NewCollector creates a Collector with dimension labels.
// provider is empty for the requester.
func NewCollector(component, provider string) *Collector {
	return &Collector{
		providerErrors: make(map[string]int64),
		component:      component,
		provider:       provider,
	}
}

// add increments one counter under the lock.
func (c *Collector) add(counter *int64, n int64) {
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Requester ---

// IncLookupStarted records a Lookup call.
func (c *Collector) IncLookupStarted() {
	if c == nil {
		return
	}
	c.add(&c.lookupsStarted, 1)
}

// IncAttempt records one submission attempt (request file written).
func (c *Collector) IncAttempt() {
	if c == nil {
		return
	}
	c.add(&c.attempts, 1)
}

// IncTimeout records an attempt that saw no response before its deadline.
func (c *Collector) IncTimeout() {
	if c == nil {
		return
	}
	c.add(&c.timeouts, 1)
}

// IncLookupExhausted records a Lookup that ran out of attempts.
func (c *Collector) IncLookupExhausted() {
	if c == nil {
		return
	}
	c.add(&c.lookupsExhausted, 1)
}

// IncResponseReceived records a response file consumed by the requester.
func (c *Collector) IncResponseReceived() {
	if c == nil {
		return
	}
	c.add(&c.responsesReceived, 1)
}

// IncDecodeError records a response file that did not parse.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, 1)
}

// IncReadError records a response read that failed after its retries.
func (c *Collector) IncReadError() {
	if c == nil {
		return
	}
	c.add(&c.readErrors, 1)
}

// IncCleanupFailure records a best-effort deletion that failed.
func (c *Collector) IncCleanupFailure() {
	if c == nil {
		return
	}
	c.add(&c.cleanupFailures, 1)
}

// --- Responder ---

// IncScan records one scan tick.
func (c *Collector) IncScan() {
	if c == nil {
		return
	}
	c.add(&c.scans, 1)
}

// IncScanError records a scan whose directory listing failed.
func (c *Collector) IncScanError() {
	if c == nil {
		return
	}
	c.add(&c.scanErrors, 1)
}

// IncHandlerStarted records a handler started for a discovered request.
func (c *Collector) IncHandlerStarted() {
	if c == nil {
		return
	}
	c.add(&c.handlersStarted, 1)
}

// IncResponded records a response file written.
func (c *Collector) IncResponded() {
	if c == nil {
		return
	}
	c.add(&c.responded, 1)
}

// IncRejected records a request dropped by validation.
func (c *Collector) IncRejected() {
	if c == nil {
		return
	}
	c.add(&c.rejected, 1)
}

// IncFailed records a handler that ended without a response.
func (c *Collector) IncFailed() {
	if c == nil {
		return
	}
	c.add(&c.failed, 1)
}

// IncRecovered records a handler panic that was contained.
func (c *Collector) IncRecovered() {
	if c == nil {
		return
	}
	c.add(&c.recovered, 1)
}

// IncProviderError records a provider failure by reason.
func (c *Collector) IncProviderError(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.providerErrors[reason]++
	c.mu.Unlock()
}

// --- Sweeper ---

// AddOrphansSwept records reclaimed orphan files.
func (c *Collector) AddOrphansSwept(n int) {
	if c == nil {
		return
	}
	c.add(&c.orphansSwept, int64(n))
}

// IncSweepError records a failed sweep pass or deletion.
func (c *Collector) IncSweepError() {
	if c == nil {
		return
	}
	c.add(&c.sweepErrors, 1)
}

// --- Downstream ---

// IncArchiveWriteSuccess records a lookup persisted to the archive.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteSuccess, 1)
}

// IncArchiveWriteFailure records an archive write failure.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteFailure, 1)
}

// IncNotifySuccess records a published lookup notification.
func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.add(&c.notifySuccess, 1)
}

// IncNotifyFailure records a notification that could not be published.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.add(&c.notifyFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	providerErrors := make(map[string]int64, len(c.providerErrors))
	for k, v := range c.providerErrors {
		providerErrors[k] = v
	}

	return Snapshot{
		LookupsStarted:    c.lookupsStarted,
		Attempts:          c.attempts,
		Timeouts:          c.timeouts,
		LookupsExhausted:  c.lookupsExhausted,
		ResponsesReceived: c.responsesReceived,
		DecodeErrors:      c.decodeErrors,
		ReadErrors:        c.readErrors,
		CleanupFailures:   c.cleanupFailures,

		Scans:           c.scans,
		ScanErrors:      c.scanErrors,
		HandlersStarted: c.handlersStarted,
		Responded:       c.responded,
		Rejected:        c.rejected,
		Failed:          c.failed,
		Recovered:       c.recovered,
		ProviderErrors:  providerErrors,

		OrphansSwept: c.orphansSwept,
		SweepErrors:  c.sweepErrors,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,
		NotifySuccess:       c.notifySuccess,
		NotifyFailure:       c.notifyFailure,

		Component: c.component,
		Provider:  c.provider,
	}
}
