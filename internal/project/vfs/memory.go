package vfs

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Standard error values for MemFS operations.
// These align with POSIX errors for consistency with OSFS.
var (
	errIsDir  = syscall.EISDIR
	errNotDir = syscall.ENOTDIR
	errLoop   = syscall.ELOOP
)

// maxLinkHops bounds symlink resolution, as the kernel does.
const maxLinkHops = 40

// MemFS implements VFS using an in-memory file system.
// It is primarily used for testing: it can hold symbolic links and paths
// that report permission errors. Open, Stat and ReadDir follow links;
// Lstat follows them everywhere but in the last element.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu         sync.RWMutex
	files      map[string]*memFile
	dirs       map[string]bool
	links      map[string]string
	unreadable map[string]bool
}

type memFile struct {
	content []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates a new in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{
		files:      make(map[string]*memFile),
		dirs:       map[string]bool{"/": true},
		links:      make(map[string]string),
		unreadable: make(map[string]bool),
	}
}

// Ensure MemFS implements VFS.
var _ VFS = (*MemFS)(nil)

// Open opens a file for reading.
func (m *MemFS) Open(filePath string) (io.ReadCloser, error) {
	content, err := m.read("open", filePath)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MemFS) read(op, filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath, err := m.resolveLocked(op, m.cleanPath(filePath))
	if err != nil {
		return nil, err
	}
	if m.unreadable[filePath] {
		return nil, &fs.PathError{Op: op, Path: filePath, Err: fs.ErrPermission}
	}
	f, ok := m.files[filePath]
	if !ok {
		if m.dirs[filePath] {
			return nil, &fs.PathError{Op: op, Path: filePath, Err: errIsDir}
		}
		return nil, &fs.PathError{Op: op, Path: filePath, Err: fs.ErrNotExist}
	}

	// Return a copy to prevent modification
	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// Lstat returns file information without following symbolic links.
func (m *MemFS) Lstat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	dir, err := m.resolveLocked("lstat", path.Dir(filePath))
	if err != nil {
		return FileInfo{}, err
	}
	info, ok := m.infoLocked(path.Join(dir, path.Base(filePath)))
	if !ok {
		return FileInfo{}, &fs.PathError{Op: "lstat", Path: filePath, Err: fs.ErrNotExist}
	}
	return NewFileInfo(filePath, info.Name(), info.Size(), info.Mode(), info.ModTime()), nil
}

// Stat returns file information, following symbolic links. The returned
// info keeps filePath as its path.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	target, err := m.resolveLocked("stat", filePath)
	if err != nil {
		return FileInfo{}, err
	}
	info, ok := m.infoLocked(target)
	if !ok {
		return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
	}
	return NewFileInfo(filePath, path.Base(filePath), info.Size(), info.Mode(), info.ModTime()), nil
}

// resolveLocked follows links in every element of p.
func (m *MemFS) resolveLocked(op, p string) (string, error) {
	hops := 0
	return m.resolve(op, p, &hops)
}

func (m *MemFS) resolve(op, p string, hops *int) (string, error) {
	cur := "/"
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		next := path.Join(cur, part)
		if target, ok := m.links[next]; ok {
			*hops++
			if *hops > maxLinkHops {
				return "", &fs.PathError{Op: op, Path: p, Err: errLoop}
			}
			if !path.IsAbs(target) {
				target = path.Join(cur, target)
			}
			resolved, err := m.resolve(op, m.cleanPath(target), hops)
			if err != nil {
				return "", err
			}
			next = resolved
		}
		cur = next
	}
	return cur, nil
}

func (m *MemFS) infoLocked(filePath string) (FileInfo, bool) {
	name := path.Base(filePath)
	if f, ok := m.files[filePath]; ok {
		return NewFileInfo(filePath, name, int64(len(f.content)), f.mode, f.modTime), true
	}
	if m.dirs[filePath] {
		return NewFileInfo(filePath, name, 0, fs.ModeDir|0o755, time.Time{}), true
	}
	if target, ok := m.links[filePath]; ok {
		return NewFileInfo(filePath, name, int64(len(target)), fs.ModeSymlink|0o777, time.Time{}), true
	}
	return FileInfo{}, false
}

// ReadDir reads a directory and returns its entries sorted by name.
func (m *MemFS) ReadDir(dirPath string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requested := m.cleanPath(dirPath)
	dirPath, err := m.resolveLocked("readdir", requested)
	if err != nil {
		return nil, err
	}

	if !m.dirs[dirPath] {
		if _, ok := m.files[dirPath]; ok {
			return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: errNotDir}
		}
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist}
	}
	if m.unreadable[dirPath] {
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrPermission}
	}

	prefix := dirPath
	if prefix != "/" {
		prefix += "/"
	}

	seen := make(map[string]bool)
	var entries []FileInfo
	collect := func(p string) {
		if !strings.HasPrefix(p, prefix) {
			return
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" || strings.Contains(rest, "/") || seen[rest] {
			return // Not a direct child
		}
		if info, ok := m.infoLocked(p); ok {
			// Entries live under the path asked for, as with OSFS.
			entries = append(entries, NewFileInfo(path.Join(requested, rest), rest, info.Size(), info.Mode(), info.ModTime()))
			seen[rest] = true
		}
	}
	for p := range m.files {
		collect(p)
	}
	for p := range m.dirs {
		collect(p)
	}
	for p := range m.links {
		collect(p)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

// Abs returns the cleaned, rooted form of filePath.
func (m *MemFS) Abs(filePath string) (string, error) {
	return m.cleanPath(filePath), nil
}

// AddFile adds a file, creating parent directories as needed.
func (m *MemFS) AddFile(filePath string, content string) {
	m.AddBytes(filePath, []byte(content))
}

// AddBytes adds a file with raw content, creating parent directories as needed.
func (m *MemFS) AddBytes(filePath string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = m.cleanPath(filePath)
	m.mkdirAllLocked(path.Dir(filePath))

	data := make([]byte, len(content))
	copy(data, content)
	m.files[filePath] = &memFile{content: data, mode: 0o644, modTime: time.Now()}
}

// AddDir adds a directory and all of its parents.
func (m *MemFS) AddDir(dirPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(m.cleanPath(dirPath))
}

// AddSymlink adds a symbolic link at linkPath pointing to target.
// A relative target is resolved against the link's directory.
func (m *MemFS) AddSymlink(linkPath, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	linkPath = m.cleanPath(linkPath)
	m.mkdirAllLocked(path.Dir(linkPath))
	m.links[linkPath] = target
}

// SetUnreadable makes reads and listings of p fail with fs.ErrPermission.
func (m *MemFS) SetUnreadable(p string, unreadable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = m.cleanPath(p)
	if unreadable {
		m.unreadable[p] = true
	} else {
		delete(m.unreadable, p)
	}
}

// Remove removes p and, for directories, everything beneath it.
func (m *MemFS) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = m.cleanPath(p)
	prefix := p + "/"
	for f := range m.files {
		if f == p || strings.HasPrefix(f, prefix) {
			delete(m.files, f)
		}
	}
	for d := range m.dirs {
		if d != "/" && (d == p || strings.HasPrefix(d, prefix)) {
			delete(m.dirs, d)
		}
	}
	for l := range m.links {
		if l == p || strings.HasPrefix(l, prefix) {
			delete(m.links, l)
		}
	}
}

// Files returns all file paths in the file system.
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]string, 0, len(m.files))
	for f := range m.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func (m *MemFS) mkdirAllLocked(dirPath string) {
	current := ""
	for _, part := range strings.Split(strings.Trim(dirPath, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		m.dirs[current] = true
	}
}

// cleanPath normalizes a path.
func (m *MemFS) cleanPath(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
