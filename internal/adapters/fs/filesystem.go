// Package fs implements ports.FileSystem: stat, read, atomic write, copy,
// and remove, the primitives the execution graph (§4.4) and job scheduler
// (§4.5) need for rebuild decisions and atomic output publication.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.stu.dev/stu/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileSystem = (*FileSystem)(nil)

// FileSystem implements ports.FileSystem directly on the os package.
type FileSystem struct{}

// New creates a FileSystem adapter.
func New() *FileSystem {
	return &FileSystem{}
}

// Stat returns the file's size and modification time, or ok=false if it
// does not exist (§4.4 rebuild decision: "If the file does not exist").
func (f *FileSystem) Stat(path string) (ports.FileInfo, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.FileInfo{}, false, nil
		}
		return ports.FileInfo{}, false, zerr.With(zerr.Wrap(err, "stat failed"), "path", path)
	}
	return ports.FileInfo{ModTime: info.ModTime(), Size: info.Size()}, true, nil
}

// ReadFile reads path's full content, used both for dynamic-dependency
// expansion (§4.4) and for loading VARIABLE dependency content (§4.1).
func (f *FileSystem) ReadFile(path string) ([]byte, error) {
	//nolint:gosec // path is derived from rule/target names under the caller's control
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "read failed"), "path", path)
	}
	return data, nil
}

// WriteFileAtomic writes content to "<path>.tmp.<pid>" and renames it into
// place, the atomic-publication idiom of §5, adapted from the teacher's
// internal/adapters/cas/store.go tmp-then-persist shape but using a real
// rename rather than a direct os.WriteFile, since here the write is the
// thing being made atomic rather than a cache entry.
func (f *FileSystem) WriteFileAtomic(path string, content []byte, mode uint32) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", dir)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	//nolint:gosec // mode is caller-controlled, matches target file's intended permissions
	if err := os.WriteFile(tmp, content, fs.FileMode(mode)); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write temporary output"), "path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, "failed to publish output"), "path", path)
	}
	return nil
}

// Copy copies src to dst and preserves src's modification time, as §4.4's
// copy rules require.
func (f *FileSystem) Copy(src, dst string) error {
	//nolint:gosec // path is derived from rule/target names under the caller's control
	data, err := os.ReadFile(src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read copy source"), "path", src)
	}
	info, err := os.Stat(src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat copy source"), "path", src)
	}
	if err := f.WriteFileAtomic(dst, data, uint32(info.Mode().Perm())); err != nil {
		return err
	}
	return os.Chtimes(dst, time.Now(), info.ModTime())
}

// Remove deletes path; a missing file is not an error, matching the
// cleanup step of an aborted build (§5: "partial outputs are deleted").
func (f *FileSystem) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return zerr.With(zerr.Wrap(err, "failed to remove file"), "path", path)
	}
	return nil
}
