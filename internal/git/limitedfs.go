package git

import (
	"errors"
	"os"
	"sync/atomic"

	billy "github.com/go-git/go-billy/v5"
)

// Caps applied to the in-memory filesystems backing a clone. A clone pulls
// the whole remote into memory before the index file is read, so a remote
// must not be able to exhaust the daemon's memory during a refresh.
const (
	maxCloneFiles     = 10 * 1000
	maxCloneTotalSize = 100 * 1024 * 1024
)

var (
	// ErrTooManyFiles indicates the remote exceeds the clone file-count cap
	ErrTooManyFiles = errors.New("repository has too many files")

	// ErrRepositoryTooLarge indicates the remote exceeds the clone size cap
	ErrRepositoryTooLarge = errors.New("repository exceeds size limit")
)

// limitedFS wraps a billy filesystem and enforces file-count and total-size
// caps on everything written through it
type limitedFS struct {
	billy.Filesystem

	maxFiles int64
	maxBytes int64

	files atomic.Int64
	bytes atomic.Int64
}

// newLimitedFS caps fs at maxFiles created files and maxBytes written in total
func newLimitedFS(fs billy.Filesystem, maxFiles, maxBytes int64) billy.Filesystem {
	return &limitedFS{
		Filesystem: fs,
		maxFiles:   maxFiles,
		maxBytes:   maxBytes,
	}
}

func (l *limitedFS) Create(filename string) (billy.File, error) {
	if l.files.Add(1) > l.maxFiles {
		return nil, ErrTooManyFiles
	}
	f, err := l.Filesystem.Create(filename)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: f, fs: l}, nil
}

func (l *limitedFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		if l.files.Add(1) > l.maxFiles {
			return nil, ErrTooManyFiles
		}
	}
	f, err := l.Filesystem.OpenFile(filename, flag, perm)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: f, fs: l}, nil
}

func (l *limitedFS) TempFile(dir, prefix string) (billy.File, error) {
	if l.files.Add(1) > l.maxFiles {
		return nil, ErrTooManyFiles
	}
	f, err := l.Filesystem.TempFile(dir, prefix)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: f, fs: l}, nil
}

// limitedFile charges writes against the owning filesystem's byte budget
type limitedFile struct {
	billy.File
	fs *limitedFS
}

func (f *limitedFile) Write(p []byte) (int, error) {
	if f.fs.bytes.Add(int64(len(p))) > f.fs.maxBytes {
		return 0, ErrRepositoryTooLarge
	}
	return f.File.Write(p)
}
