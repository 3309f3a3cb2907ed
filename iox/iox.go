// Package iox provides I/O helpers for resource cleanup and mailbox-safe
// file publication.
package iox

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// TempPrefix marks in-flight temporary files. Names carrying it never match
// a request or response pattern, so scanners skip them.
const TempPrefix = ".tmp-"

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
func DiscardErr(fn func() error) { _ = fn() }

// RemoveIfExists removes path. A missing file is not an error: another
// process may have claimed it first.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// WriteFileAtomic publishes data at path in one step. The content is written
// to a temporary sibling first and renamed into place, so a reader never
// observes a partially written file. An existing file at path is replaced.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := writeTemp(filepath.Dir(path), data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// CreateExclusive publishes data at path only if path does not exist yet.
// The content is staged in a temporary sibling and hard-linked into place;
// the link fails with fs.ErrExist when path is taken, so an existing file is
// never overwritten and a reader never sees partial content.
func CreateExclusive(path string, data []byte, perm fs.FileMode) error {
	if _, err := os.Lstat(path); err == nil {
		return &fs.PathError{Op: "create", Path: path, Err: fs.ErrExist}
	}

	tmp, err := writeTemp(filepath.Dir(path), data, perm)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := os.Link(tmp, path); err != nil {
		return err
	}
	return nil
}

// writeTemp writes data to a new TempPrefix file in dir and returns its path.
func writeTemp(dir string, data []byte, perm fs.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		DiscardClose(f)
		_ = os.Remove(name)
		return "", err
	}
	if err := f.Chmod(perm); err != nil {
		DiscardClose(f)
		_ = os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}
