package fs

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"syscall"
)

// Op names a filesystem operation that [Faulty] can fail.
type Op string

// Operations understood by [Faulty].
const (
	OpOpen   Op = "open"
	OpStat   Op = "stat"
	OpRemove Op = "remove"
	OpRename Op = "rename"
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpSync   Op = "sync"
	OpClose  Op = "close"
)

// Fault describes one injected failure rule.
type Fault struct {
	// Op is the operation to fail.
	Op Op

	// Match restricts the rule to paths containing this substring.
	// Empty matches every path. For rename both paths are checked.
	Match string

	// Skip lets this many matching calls through before the rule fires.
	Skip int

	// Times caps how often the rule fires. Zero means every matching call.
	Times int

	// Errno is the injected error number. Defaults to EIO.
	Errno syscall.Errno
}

// faultError marks errors injected by [Faulty].
//
// The wrapped error is an [*fs.PathError] or [*os.LinkError] carrying a real
// errno, so errors.Is(err, os.ErrPermission) and errors.Is(err, syscall.EACCES)
// behave as with OS errors. The os.IsX helpers do not see through the wrapper.
type faultError struct {
	Err error
}

func (e *faultError) Error() string {
	return "injected: " + e.Err.Error()
}

func (e *faultError) Unwrap() error {
	return e.Err
}

// IsFault reports whether err (or any wrapped error) was injected by [Faulty].
func IsFault(err error) bool {
	var injected *faultError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails the operations described by its rules.
//
// Unlike random fault injection, every failure is deterministic: a rule
// fires on the (Skip+1)-th matching call and keeps firing until Times is
// exhausted. Files opened through Faulty are wrapped so file-level rules
// (read, write, sync, close) apply to them as well. Close always closes the
// underlying descriptor, even when a failure is injected.
type Faulty struct {
	fs FS

	mu       sync.Mutex
	rules    []*faultRule
	injected int
}

type faultRule struct {
	Fault

	seen  int
	fired int
}

// NewFaulty creates a [Faulty] filesystem wrapping underlying.
// Panics if underlying is nil.
func NewFaulty(underlying FS, faults ...Fault) *Faulty {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	f := &Faulty{fs: underlying}
	for _, fault := range faults {
		f.Inject(fault)
	}

	return f
}

// Inject adds a rule.
func (f *Faulty) Inject(fault Fault) {
	if fault.Errno == 0 {
		fault.Errno = syscall.EIO
	}

	f.mu.Lock()
	f.rules = append(f.rules, &faultRule{Fault: fault})
	f.mu.Unlock()
}

// Reset drops every rule. Already opened files stop failing too.
func (f *Faulty) Reset() {
	f.mu.Lock()
	f.rules = nil
	f.mu.Unlock()
}

// Injected returns how many failures have been injected so far.
func (f *Faulty) Injected() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.injected
}

// check returns the errno to inject for op on paths, or 0.
func (f *Faulty) check(op Op, paths ...string) syscall.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rule := range f.rules {
		if rule.Op != op || !rule.matches(paths) {
			continue
		}

		rule.seen++
		if rule.seen <= rule.Skip {
			continue
		}

		if rule.Times > 0 && rule.fired >= rule.Times {
			continue
		}

		rule.fired++
		f.injected++

		return rule.Errno
	}

	return 0
}

func (r *faultRule) matches(paths []string) bool {
	if r.Match == "" {
		return true
	}

	for _, p := range paths {
		if strings.Contains(p, r.Match) {
			return true
		}
	}

	return false
}

func injectedPathError(op Op, path string, errno syscall.Errno) error {
	return &faultError{Err: &fs.PathError{Op: string(op), Path: path, Err: errno}}
}

// Open opens path for reading unless an open rule fires.
func (f *Faulty) Open(path string) (File, error) {
	if errno := f.check(OpOpen, path); errno != 0 {
		return nil, injectedPathError(OpOpen, path, errno)
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &faultyFile{f: file, faulty: f, path: path}, nil
}

// OpenFile opens path with flag and perm unless an open rule fires.
func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if errno := f.check(OpOpen, path); errno != 0 {
		return nil, injectedPathError(OpOpen, path, errno)
	}

	file, err := f.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultyFile{f: file, faulty: f, path: path}, nil
}

// Stat returns file info unless a stat rule fires.
func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if errno := f.check(OpStat, path); errno != 0 {
		return nil, injectedPathError(OpStat, path, errno)
	}

	return f.fs.Stat(path)
}

// Exists reports whether path exists unless a stat rule fires.
func (f *Faulty) Exists(path string) (bool, error) {
	if errno := f.check(OpStat, path); errno != 0 {
		return false, injectedPathError(OpStat, path, errno)
	}

	return f.fs.Exists(path)
}

// Remove deletes path unless a remove rule fires.
func (f *Faulty) Remove(path string) error {
	if errno := f.check(OpRemove, path); errno != 0 {
		return injectedPathError(OpRemove, path, errno)
	}

	return f.fs.Remove(path)
}

// Rename moves oldpath to newpath unless a rename rule fires.
// Injected failures are [*os.LinkError] values, like [os.Rename].
func (f *Faulty) Rename(oldpath, newpath string) error {
	if errno := f.check(OpRename, oldpath, newpath); errno != 0 {
		return &faultError{Err: &os.LinkError{Op: string(OpRename), Old: oldpath, New: newpath, Err: errno}}
	}

	return f.fs.Rename(oldpath, newpath)
}

var _ FS = (*Faulty)(nil)

// faultyFile applies file-level rules of its [Faulty] to an open [File].
type faultyFile struct {
	f      File
	faulty *Faulty
	path   string
}

var _ File = (*faultyFile)(nil)

func (ff *faultyFile) Read(buf []byte) (int, error) {
	if errno := ff.faulty.check(OpRead, ff.path); errno != 0 {
		return 0, injectedPathError(OpRead, ff.path, errno)
	}

	return ff.f.Read(buf)
}

func (ff *faultyFile) ReadAt(buf []byte, off int64) (int, error) {
	if errno := ff.faulty.check(OpRead, ff.path); errno != 0 {
		return 0, injectedPathError(OpRead, ff.path, errno)
	}

	return ff.f.ReadAt(buf, off)
}

func (ff *faultyFile) Write(data []byte) (int, error) {
	if errno := ff.faulty.check(OpWrite, ff.path); errno != 0 {
		return 0, injectedPathError(OpWrite, ff.path, errno)
	}

	return ff.f.Write(data)
}

func (ff *faultyFile) WriteAt(data []byte, off int64) (int, error) {
	if errno := ff.faulty.check(OpWrite, ff.path); errno != 0 {
		return 0, injectedPathError(OpWrite, ff.path, errno)
	}

	return ff.f.WriteAt(data, off)
}

func (ff *faultyFile) Seek(offset int64, whence int) (int64, error) {
	return ff.f.Seek(offset, whence)
}

func (ff *faultyFile) Sync() error {
	if errno := ff.faulty.check(OpSync, ff.path); errno != 0 {
		return injectedPathError(OpSync, ff.path, errno)
	}

	return ff.f.Sync()
}

func (ff *faultyFile) Close() error {
	err := ff.f.Close()

	if errno := ff.faulty.check(OpClose, ff.path); errno != 0 {
		return injectedPathError(OpClose, ff.path, errno)
	}

	return err
}

func (ff *faultyFile) Fd() uintptr {
	return ff.f.Fd()
}

func (ff *faultyFile) Stat() (os.FileInfo, error) {
	return ff.f.Stat()
}

func (ff *faultyFile) Chmod(mode os.FileMode) error {
	return ff.f.Chmod(mode)
}
