package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for exchange failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrValidation indicates malformed framing or an unsafe response name.
	ErrValidation = errors.New("validation failed")

	// ErrTimeout indicates no response appeared before the deadline.
	ErrTimeout = errors.New("lookup timed out")

	// ErrDecode indicates a response file that does not parse.
	ErrDecode = errors.New("response decode failed")

	// ErrTransientIO indicates an I/O failure that outlived its local retries.
	ErrTransientIO = errors.New("transient i/o failure")
)

// ValidationError reports a request that cannot be framed or accepted.
type ValidationError struct {
	// Field is the offending part of the request (query, response_filename, framing).
	Field string
	// Msg describes the violation.
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TimeoutError reports a single attempt that waited past its deadline.
type TimeoutError struct {
	CorrelationID string
	Waited        time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no response for %s within %s", e.CorrelationID, e.Waited)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ExhaustedError reports that every attempt of a retried operation failed.
// It wraps the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// TransientIOError reports a read or write that kept failing.
type TransientIOError struct {
	// Op is the failed operation (read, write, remove).
	Op   string
	Path string
	Err  error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransientIO.
func (e *TransientIOError) Is(target error) bool {
	return target == ErrTransientIO
}

// ProtocolError reports a response file whose content does not parse.
type ProtocolError struct {
	Path string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

// Unwrap returns the decoder error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrDecode
}
