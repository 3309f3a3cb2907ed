// Package mailbox implements the shared-directory transport per
// CONTRACT_MAILBOX.md: correlation ids, file naming, request/response
// framing, and the directory operations both processes perform.
//
// The directory is the only shared resource. Every operation targets a
// uniquely named file; exclusive creation of the response file is the sole
// synchronization primitive.
package mailbox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pithecene-io/courier/iox"
)

// Default file name prefixes shared by requester and responder.
const (
	DefaultRequestPrefix  = "ubreq_"
	DefaultResponsePrefix = "ubresp_"
)

// File name extensions per message kind.
const (
	RequestExt  = ".txt"
	ResponseExt = ".json"
)

// HeartbeatName is the responder liveness file.
const HeartbeatName = ".courier-heartbeat"

// Prefixes holds the two fixed name prefixes. They must be distinct and
// neither may be a prefix of the other, so any file name classifies
// unambiguously.
type Prefixes struct {
	Request  string `yaml:"request"`
	Response string `yaml:"response"`
}

// DefaultPrefixes returns the ubreq_/ubresp_ prefixes.
func DefaultPrefixes() Prefixes {
	return Prefixes{
		Request:  DefaultRequestPrefix,
		Response: DefaultResponsePrefix,
	}
}

// Validate checks the prefixes for unambiguous classification.
func (p Prefixes) Validate() error {
	if p.Request == "" || p.Response == "" {
		return errors.New("request and response prefixes are required")
	}
	if strings.HasPrefix(p.Request, p.Response) || strings.HasPrefix(p.Response, p.Request) {
		return fmt.Errorf("prefixes %q and %q overlap", p.Request, p.Response)
	}
	for _, prefix := range []string{p.Request, p.Response} {
		if strings.ContainsAny(prefix, `/\`) {
			return fmt.Errorf("prefix %q contains a path separator", prefix)
		}
		if strings.HasPrefix(prefix, ".") {
			return fmt.Errorf("prefix %q must not start with a dot", prefix)
		}
	}
	return nil
}

// NewCorrelationID returns a fresh random (v4) UUID string.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Names derives the request and response file names for a correlation id.
func (p Prefixes) Names(id string) (request, response string) {
	return p.Request + id + RequestExt, p.Response + id + ResponseExt
}

// RequestPattern returns the glob matching request files.
func (p Prefixes) RequestPattern() string {
	return p.Request + "*" + RequestExt
}

// Kind classifies a mailbox file name.
type Kind int

const (
	// KindOther is any file the protocol does not own.
	KindOther Kind = iota
	// KindRequest is a request file.
	KindRequest
	// KindResponse is a response file.
	KindResponse
	// KindTemp is an in-flight temporary file.
	KindTemp
	// KindHeartbeat is the responder liveness file.
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindTemp:
		return "temp"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "other"
	}
}

// Classify returns the kind of a bare file name and, for requests and
// responses, the embedded correlation id.
func (p Prefixes) Classify(name string) (Kind, string) {
	switch {
	case name == HeartbeatName:
		return KindHeartbeat, ""
	case strings.HasPrefix(name, iox.TempPrefix):
		return KindTemp, ""
	}

	if id, ok := cut(name, p.Request, RequestExt); ok {
		return KindRequest, id
	}
	if id, ok := cut(name, p.Response, ResponseExt); ok {
		return KindResponse, id
	}
	return KindOther, ""
}

// cut strips prefix and suffix from name, requiring a non-empty remainder.
func cut(name, prefix, suffix string) (string, bool) {
	if len(name) <= len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}
