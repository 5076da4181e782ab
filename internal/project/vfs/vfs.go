// Package vfs provides a read-only virtual file system abstraction.
//
// The search engine reads the workspace through the VFS interface so that
// the walker and scanner can be exercised against an in-memory tree in tests
// and against the operating system in production.
package vfs

import (
	"io"
	"io/fs"
	"time"
)

// VFS is the read-only view of a file system used by the search engine.
type VFS interface {
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns file information, following symbolic links.
	Stat(path string) (FileInfo, error)

	// Lstat returns file information without following symbolic links.
	Lstat(path string) (FileInfo, error)

	// ReadDir lists a directory. Entries describe the links themselves,
	// never their targets.
	ReadDir(path string) ([]FileInfo, error)

	// Abs returns the absolute form of path.
	Abs(path string) (string, error)
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path, name string, size int64, mode fs.FileMode, modTime time.Time) FileInfo {
	return FileInfo{
		path:    path,
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.mode.IsDir() }

// IsRegular returns true if this is a regular file.
func (fi FileInfo) IsRegular() bool { return fi.mode.IsRegular() }

// IsSymlink returns true if this is a symbolic link.
func (fi FileInfo) IsSymlink() bool { return fi.mode&fs.ModeSymlink != 0 }
