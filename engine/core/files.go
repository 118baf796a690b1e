package core

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileLock is an acquired advisory lock.
type FileLock interface {
	Release() error
}

// FileSystem is everything the HAL and the shader build need from disk.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	// FindFiles walks every path (file or directory) and returns the files
	// whose extension is one of exts, sorted.
	FindFiles(paths []string, exts []string) ([]string, error)
	ModTime(path string) (time.Time, error)
	Exists(path string) bool
	Lock(path string, timeout time.Duration) (FileLock, error)
}

// FilterFiles keeps the files whose base name contains filter. An empty
// filter keeps everything.
func FilterFiles(files []string, filter string) []string {
	if filter == "" {
		return files
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if strings.Contains(filepath.Base(f), filter) {
			out = append(out, f)
		}
	}
	return out
}

// SrcNewerThanOut reports whether out must be rebuilt from in: true when out
// is missing or its modification time is not strictly after in's.
func SrcNewerThanOut(fsys FileSystem, in, out string) (bool, error) {
	inTime, err := fsys.ModTime(in)
	if err != nil {
		return false, err
	}
	if !fsys.Exists(out) {
		return true, nil
	}
	outTime, err := fsys.ModTime(out)
	if err != nil {
		return false, err
	}
	return !outTime.After(inTime), nil
}

func hasExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// OSFileSystem is the disk backed FileSystem.
type OSFileSystem struct {
	// PollInterval is how often a contended lock is retried.
	PollInterval time.Duration
}

func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{PollInterval: 50 * time.Millisecond}
}

func (o *OSFileSystem) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(KindIOFailure, "ReadFile", err, "%s", path)
	}
	return data, nil
}

func (o *OSFileSystem) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapError(KindIOFailure, "WriteFile", err, "%s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return WrapError(KindIOFailure, "WriteFile", err, "%s", path)
	}
	return nil
}

func (o *OSFileSystem) FindFiles(paths []string, exts []string) ([]string, error) {
	var out []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && hasExt(p, exts) {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, WrapError(KindIOFailure, "FindFiles", err, "%s", root)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (o *OSFileSystem) ModTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, WrapError(KindIOFailure, "ModTime", err, "%s", path)
	}
	return fi.ModTime(), nil
}

func (o *OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type osFileLock struct {
	path string
	f    *os.File
}

func (l *osFileLock) Release() error {
	if l.f == nil {
		return nil
	}
	l.f.Close()
	l.f = nil
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapError(KindIOFailure, "FileLock.Release", err, "%s", l.path)
	}
	return nil
}

// Lock creates path exclusively, polling until timeout if someone else holds
// it. A zero timeout tries once.
func (o *OSFileSystem) Lock(path string, timeout time.Duration) (FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, WrapError(KindIOFailure, "Lock", err, "%s", path)
	}
	poll := o.PollInterval
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return &osFileLock{path: path, f: f}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, WrapError(KindIOFailure, "Lock", err, "%s", path)
		}
		if !time.Now().Before(deadline) {
			return nil, NewError(KindIOFailure, "Lock", "timed out after %s waiting for %s", timeout, path)
		}
		time.Sleep(poll)
	}
}

// MemFileSystem keeps files in memory with explicit modification times.
type MemFileSystem struct {
	mu    sync.Mutex
	files map[string]memFile
	locks map[string]bool
	// Now stamps writes. Defaults to time.Now.
	Now func() time.Time
}

type memFile struct {
	data    []byte
	modTime time.Time
}

func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{
		files: make(map[string]memFile),
		locks: make(map[string]bool),
		Now:   time.Now,
	}
}

func (m *MemFileSystem) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, WrapError(KindIOFailure, "ReadFile", fs.ErrNotExist, "%s", path)
	}
	return append([]byte(nil), f.data...), nil
}

func (m *MemFileSystem) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = memFile{data: append([]byte(nil), data...), modTime: m.Now()}
	return nil
}

// SetModTime overrides the modification time of an existing file.
func (m *MemFileSystem) SetModTime(path string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := filepath.Clean(path)
	if f, ok := m.files[p]; ok {
		f.modTime = t
		m.files[p] = f
	}
}

func (m *MemFileSystem) FindFiles(paths []string, exts []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.files {
		if !hasExt(name, exts) {
			continue
		}
		for _, root := range paths {
			root = filepath.Clean(root)
			if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemFileSystem) ModTime(path string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return time.Time{}, WrapError(KindIOFailure, "ModTime", fs.ErrNotExist, "%s", path)
	}
	return f.modTime, nil
}

func (m *MemFileSystem) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

type memLock struct {
	m    *MemFileSystem
	path string
}

func (l *memLock) Release() error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	delete(l.m.locks, l.path)
	return nil
}

// Lock never waits: a held lock fails immediately with IOFailure.
func (m *MemFileSystem) Lock(path string, timeout time.Duration) (FileLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := filepath.Clean(path)
	if m.locks[p] {
		return nil, NewError(KindIOFailure, "Lock", "timed out after %s waiting for %s", timeout, path)
	}
	m.locks[p] = true
	return &memLock{m: m, path: p}, nil
}
