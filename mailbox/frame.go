package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/courier/types"
)

// MaxRequestSize bounds a request file read by the responder.
// A query plus a response name never come close.
const MaxRequestSize = 64 * 1024

// Request is the decoded content of a request file.
type Request struct {
	// Query identifies the lookup target (handle or numeric id).
	Query string
	// ResponseName is the bare response file name the responder must create.
	ResponseName string
}

// EncodeRequest frames a request as "query\nresponse_name".
// Fields must be non-empty and free of line breaks.
func EncodeRequest(r Request) ([]byte, error) {
	if err := checkField("query", r.Query); err != nil {
		return nil, err
	}
	if err := checkField("response_filename", r.ResponseName); err != nil {
		return nil, err
	}
	return []byte(r.Query + "\n" + r.ResponseName), nil
}

func checkField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &types.ValidationError{Field: field, Msg: "empty"}
	}
	if strings.ContainsAny(value, "\r\n") {
		return &types.ValidationError{Field: field, Msg: "contains a line break"}
	}
	return nil
}

// DecodeRequest parses request file content.
//
// The whole content is trimmed, then split into lines; at least two lines
// are required and both the query (line 1) and the response name (line 2)
// must be non-empty after trimming. Lines past the second are ignored.
//
// Errors:
//   - *types.ValidationError with Field=framing: fewer than 2 lines
//   - *types.ValidationError with Field=query or response_filename: empty field
func DecodeRequest(data []byte) (Request, error) {
	content := strings.TrimSpace(string(data))
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	if content == "" || len(lines) < 2 {
		return Request{}, &types.ValidationError{
			Field: "framing",
			Msg:   fmt.Sprintf("expected 2 lines, got %d", countLines(content)),
		}
	}

	req := Request{
		Query:        strings.TrimSpace(lines[0]),
		ResponseName: strings.TrimSpace(lines[1]),
	}
	if req.Query == "" {
		return Request{}, &types.ValidationError{Field: "query", Msg: "empty"}
	}
	if req.ResponseName == "" {
		return Request{}, &types.ValidationError{Field: "response_filename", Msg: "empty"}
	}
	return req, nil
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// ResolveResponsePath validates a declared response name and returns its
// absolute path inside root.
//
// Rejects names that lack the response prefix, carry path separators, or
// resolve outside root.
func ResolveResponsePath(root string, prefixes Prefixes, name string) (string, error) {
	if !strings.HasPrefix(name, prefixes.Response) {
		return "", &types.ValidationError{
			Field: "response_filename",
			Msg:   fmt.Sprintf("%q lacks prefix %q", name, prefixes.Response),
		}
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", &types.ValidationError{
			Field: "response_filename",
			Msg:   fmt.Sprintf("%q is not a bare file name", name),
		}
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve mailbox root: %w", err)
	}
	target, err := filepath.Abs(filepath.Join(rootAbs, name))
	if err != nil {
		return "", fmt.Errorf("resolve response path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &types.ValidationError{
			Field: "response_filename",
			Msg:   fmt.Sprintf("%q escapes the mailbox", name),
		}
	}
	return target, nil
}

// responseProbe peeks at the discriminating fields without a full decode.
type responseProbe struct {
	Error *string          `json:"error"`
	ID    *json.RawMessage `json:"id"`
}

// EncodeResponse serializes a lookup result as response file content.
// Profiles encode as the profile record; failures as {"error": reason}.
func EncodeResponse(result *types.LookupResult) ([]byte, error) {
	switch {
	case result == nil:
		return nil, errors.New("nil lookup result")
	case result.Profile != nil && result.Error != nil:
		return nil, errors.New("lookup result carries both profile and error")
	case result.Profile != nil:
		p := *result.Profile
		if p.AllUsernames == nil {
			p.AllUsernames = []string{}
		}
		return json.MarshalIndent(&p, "", "  ")
	case result.Error != nil:
		if result.Error.Reason == "" {
			return nil, errors.New("lookup error without reason")
		}
		return json.MarshalIndent(result.Error, "", "  ")
	default:
		return nil, errors.New("empty lookup result")
	}
}

// DecodeResponse parses response file content.
// A present "error" key selects the failure shape; otherwise an "id" key
// is required and the content decodes as a profile.
func DecodeResponse(data []byte) (*types.LookupResult, error) {
	var probe responseProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid response json: %w", err)
	}

	if probe.Error != nil {
		if *probe.Error == "" {
			return nil, errors.New("error response without reason")
		}
		var lookupErr types.LookupError
		if err := json.Unmarshal(data, &lookupErr); err != nil {
			return nil, fmt.Errorf("invalid error response: %w", err)
		}
		return &types.LookupResult{Error: &lookupErr}, nil
	}

	if probe.ID == nil {
		return nil, errors.New("response has neither error nor id")
	}
	var profile types.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("invalid profile response: %w", err)
	}
	if profile.AllUsernames == nil {
		profile.AllUsernames = []string{}
	}
	return &types.LookupResult{Profile: &profile}, nil
}
