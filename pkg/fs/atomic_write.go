package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrAtomicWriteDirSync indicates the parent directory could not be synced after rename.
//
// When returned, the new file is in place but durability is not guaranteed.
// Callers can detect this with errors.Is(err, ErrAtomicWriteDirSync).
var ErrAtomicWriteDirSync = errors.New("dir sync")

// AtomicWriter replaces whole files using a temp file and rename.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter creates an AtomicWriter that uses the given filesystem.
// Panics if fs is nil.
func NewAtomicWriter(fs FS) *AtomicWriter {
	if fs == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fs}
}

// AtomicWriteOptions configures [AtomicWriter.Write].
type AtomicWriteOptions struct {
	// SyncDir controls whether the parent directory is synced after rename.
	SyncDir bool

	// Perm specifies the file permissions. Must be non-zero.
	// The file is always explicitly chmod'd to this mode, regardless of umask.
	Perm os.FileMode

	// Tag is embedded in the temp file name (".<base>.<tag>-<uuid>").
	// Defaults to "tmp".
	Tag string
}

// Write writes data from reader to path atomically and durably.
//
// It writes to a uniquely named temp file in the same directory, syncs it,
// renames it over path, then syncs the parent directory (if opts.SyncDir is
// true). The temp file is removed on every failure path, so a failed Write
// leaves path untouched and no temp artifact behind.
//
// If the directory sync step fails, the returned error satisfies
// errors.Is(err, ErrAtomicWriteDirSync) and the new content is already in place.
func (w *AtomicWriter) Write(path string, reader io.Reader, opts AtomicWriteOptions) error {
	if reader == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == string(os.PathSeparator) || base == "." {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tag := opts.Tag
	if tag == "" {
		tag = "tmp"
	}

	tmpPath := TempPath(dir, base, tag)

	tmpFile, err := w.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, opts.Perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	closed := false
	cleanup := func() error {
		var closeErr error
		if !closed {
			closeErr = closeTmpFile(tmpPath, tmpFile)
		}

		return errors.Join(closeErr, removeTempFile(w.fs, tmpPath))
	}

	chmodErr := tmpFile.Chmod(opts.Perm)
	if chmodErr != nil {
		return errors.Join(fmt.Errorf("chmod temp file %q: %w", tmpPath, chmodErr), cleanup())
	}

	writeErr := writeAndSyncTempFile(tmpFile, tmpPath, reader)
	if writeErr != nil {
		return errors.Join(writeErr, cleanup())
	}

	closeErr := closeTmpFile(tmpPath, tmpFile)
	closed = true

	if closeErr != nil {
		return errors.Join(closeErr, cleanup())
	}

	renameErr := w.fs.Rename(tmpPath, path)
	if renameErr != nil {
		return errors.Join(fmt.Errorf("rename: %w", renameErr), cleanup())
	}

	if opts.SyncDir {
		return fsyncDir(w.fs, dir)
	}

	return nil
}

// TempPath returns a fresh temp file path for base inside dir.
func TempPath(dir, base, tag string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s.%s-%s", base, tag, uuid.NewString()))
}

// IsTempPath reports whether name looks like a temp file created for base
// with the given tag.
func IsTempPath(name, base, tag string) bool {
	return strings.HasPrefix(filepath.Base(name), "."+base+"."+tag+"-")
}

func writeAndSyncTempFile(file File, path string, r io.Reader) error {
	_, copyErr := io.Copy(file, r)
	if copyErr != nil {
		return fmt.Errorf("write temp file %q: %w", path, copyErr)
	}

	err := file.Sync()
	if err != nil {
		return fmt.Errorf("sync temp file %q: %w", path, err)
	}

	return nil
}

func fsyncDir(fs FS, dirPath string) error {
	dirFd, err := fs.Open(dirPath)
	if err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("open dir %q: %w", dirPath, err))
	}

	syncErr := dirFd.Sync()
	if syncErr == nil {
		return closeDir(dirPath, dirFd)
	}

	return errors.Join(
		ErrAtomicWriteDirSync,
		fmt.Errorf("%q: %w", dirPath, syncErr),
		closeDir(dirPath, dirFd),
	)
}

func closeDir(dir string, file File) error {
	err := file.Close()
	if err == nil {
		return nil
	}

	return fmt.Errorf("close dir %q: %w", dir, err)
}

func closeTmpFile(path string, file File) error {
	err := file.Close()
	if err == nil {
		return nil
	}

	return fmt.Errorf("close temp file %q: %w", path, err)
}

func removeTempFile(fs FS, path string) error {
	err := fs.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp file %q: %w", path, err)
	}

	return nil
}
