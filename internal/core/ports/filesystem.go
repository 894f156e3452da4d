package ports

import "time"

// FileInfo is the subset of os.FileInfo the execution graph needs to make
// rebuild decisions (§4.4): existence and modification time.
type FileInfo struct {
	ModTime time.Time
	Size    int64
}

// FileSystem abstracts the filesystem operations the execution graph and
// command construction perform, so internal/engine/graph can be tested
// without touching disk, the same seam the teacher draws around os.Stat
// in internal/adapters/fs (there for hashing; here for mtime comparison
// and dynamic-dependency-file reads).
//
//go:generate go run go.uber.org/mock/mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type FileSystem interface {
	// Stat returns file metadata, or ok=false if the file does not exist.
	Stat(path string) (info FileInfo, ok bool, err error)
	// ReadFile returns the full content of path.
	ReadFile(path string) ([]byte, error)
	// WriteFileAtomic writes content to a temporary file alongside path and
	// renames it into place on success (§5: "<name>.tmp.<pid>" + rename).
	WriteFileAtomic(path string, content []byte, mode uint32) error
	// Copy copies src to dst, preserving src's modification time (§4.4 copy
	// rules).
	Copy(src, dst string) error
	// Remove deletes path; a missing file is not an error.
	Remove(path string) error
}
