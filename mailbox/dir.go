package mailbox

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/types"
)

// FileMode is the permission of every file the protocol publishes.
const FileMode fs.FileMode = 0o644

// Dir is an opened mailbox directory.
// Safe for concurrent use: it holds no mutable state.
type Dir struct {
	root     string
	prefixes Prefixes
}

// Open validates root and prefixes and returns a Dir rooted at the absolute
// path of root. The directory must already exist.
func Open(root string, prefixes Prefixes) (*Dir, error) {
	if root == "" {
		return nil, errors.New("mailbox directory is required")
	}
	if err := prefixes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prefixes: %w", err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve mailbox %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open mailbox %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mailbox %q is not a directory", root)
	}

	return &Dir{root: abs, prefixes: prefixes}, nil
}

// Root returns the absolute mailbox path.
func (d *Dir) Root() string { return d.root }

// Prefixes returns the name prefixes in use.
func (d *Dir) Prefixes() Prefixes { return d.prefixes }

// Path joins a bare file name onto the mailbox root.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

// Entry is one classified file of the mailbox.
type Entry struct {
	Name    string
	Kind    Kind
	ID      string
	ModTime time.Time
	Size    int64
}

// Entries lists and classifies every regular file in the mailbox.
// Files that disappear during the listing are skipped.
func (d *Dir) Entries() ([]Entry, error) {
	des, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list mailbox: %w", err)
	}

	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		kind, id := d.prefixes.Classify(de.Name())
		entries = append(entries, Entry{
			Name:    de.Name(),
			Kind:    kind,
			ID:      id,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return entries, nil
}

// ListRequests returns the absolute paths of all request files, in
// directory-listing order. No priority is implied.
func (d *Dir) ListRequests() ([]string, error) {
	des, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	var paths []string
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		if kind, _ := d.prefixes.Classify(de.Name()); kind == KindRequest {
			paths = append(paths, d.Path(de.Name()))
		}
	}
	return paths, nil
}

// SubmitRequest publishes a request file for id in one atomic step and
// returns the request path and the response path the responder will create.
func (d *Dir) SubmitRequest(id, query string) (requestPath, responsePath string, err error) {
	requestName, responseName := d.prefixes.Names(id)

	data, err := EncodeRequest(Request{Query: query, ResponseName: responseName})
	if err != nil {
		return "", "", err
	}

	requestPath = d.Path(requestName)
	if err := iox.WriteFileAtomic(requestPath, data, FileMode); err != nil {
		return "", "", &types.TransientIOError{Op: "write", Path: requestPath, Err: err}
	}
	return requestPath, d.Path(responseName), nil
}

// ReadRequest reads and decodes a request file.
// I/O errors are returned as-is so callers can test for fs.ErrNotExist and
// fs.ErrPermission; framing errors are *types.ValidationError.
func (d *Dir) ReadRequest(path string) (Request, error) {
	data, err := readLimited(path, MaxRequestSize)
	if err != nil {
		return Request{}, err
	}
	return DecodeRequest(data)
}

// WriteResponse validates the declared response name and creates the
// response file exclusively. An existing response yields an error matching
// fs.ErrExist and is left untouched.
func (d *Dir) WriteResponse(name string, result *types.LookupResult) error {
	path, err := ResolveResponsePath(d.root, d.prefixes, name)
	if err != nil {
		return err
	}
	data, err := EncodeResponse(result)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return iox.CreateExclusive(path, data, FileMode)
}

// Exists reports whether path exists. Errors other than fs.ErrNotExist are
// returned so pollers can tell "absent" from "unreadable".
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// readLimited reads at most limit bytes of path.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(f)

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &types.ValidationError{
			Field: "framing",
			Msg:   fmt.Sprintf("request exceeds %d bytes", limit),
		}
	}
	return data, nil
}
