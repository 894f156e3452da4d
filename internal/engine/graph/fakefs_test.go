package graph_test

import (
	"time"

	"go.stu.dev/stu/internal/core/ports"
)

// fakeFile is one in-memory file entry for fakeFS.
type fakeFile struct {
	content []byte
	modTime time.Time
}

// fakeFS is a minimal in-memory ports.FileSystem for exercising the
// execution graph without touching disk.
type fakeFS struct {
	files map[string]fakeFile
}

var _ ports.FileSystem = (*fakeFS)(nil)

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string]fakeFile)}
}

func (f *fakeFS) set(path, content string, modTime time.Time) {
	f.files[path] = fakeFile{content: []byte(content), modTime: modTime}
}

func (f *fakeFS) Stat(path string) (ports.FileInfo, bool, error) {
	file, ok := f.files[path]
	if !ok {
		return ports.FileInfo{}, false, nil
	}
	return ports.FileInfo{ModTime: file.modTime, Size: int64(len(file.content))}, true, nil
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	file, ok := f.files[path]
	if !ok {
		return nil, errNotExist(path)
	}
	return file.content, nil
}

func (f *fakeFS) WriteFileAtomic(path string, content []byte, _ uint32) error {
	f.files[path] = fakeFile{content: content, modTime: now()}
	return nil
}

func (f *fakeFS) Copy(src, dst string) error {
	file, ok := f.files[src]
	if !ok {
		return errNotExist(src)
	}
	f.files[dst] = fakeFile{content: file.content, modTime: file.modTime}
	return nil
}

func (f *fakeFS) Remove(path string) error {
	delete(f.files, path)
	return nil
}

var fakeClock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func now() time.Time {
	fakeClock = fakeClock.Add(time.Second)
	return fakeClock
}

type notExistError struct{ path string }

func (e notExistError) Error() string { return "file does not exist: " + e.path }

func errNotExist(path string) error { return notExistError{path: path} }
