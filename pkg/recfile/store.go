package recfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/recfile/pkg/fs"
)

// defaultPerm is the mode of files created by [Create] when
// [Options.Perm] is zero.
const defaultPerm os.FileMode = 0o644

// Options configures [Create] and [Open].
type Options struct {
	// Path is the filesystem path of the record file. Required.
	Path string

	// FS is the filesystem used for all file access.
	//
	// Defaults to [fs.NewReal]. Tests substitute a fault-injecting FS.
	FS fs.FS

	// Perm is the mode for files created by [Create]. Defaults to 0o644.
	Perm os.FileMode

	// Verify runs [Validate] on the file before [Open] trusts its header.
	//
	// Without it Open only checks the header counters; structural problems
	// surface later as [ErrCorrupt] from the operation that meets them.
	Verify bool

	// Logger receives debug and info events. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

func (o Options) filesystem() fs.FS {
	if o.FS == nil {
		return fs.NewReal()
	}

	return o.FS
}

func (o Options) perm() os.FileMode {
	if o.Perm == 0 {
		return defaultPerm
	}

	return o.Perm
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}

	return o.Logger.With().Str("path", o.Path).Logger()
}

// Store is an open record file.
//
// A Store owns one file handle, the three header counters and the cursor.
// Counters are kept in memory and persisted by [Store.Close],
// [Store.Sync] and [Store.Compact].
//
// A Store is not safe for concurrent use.
type Store struct {
	fsys fs.FS
	path string
	perm os.FileMode
	log  zerolog.Logger

	file fs.File
	hdr  header
	cur  cursor

	compactions int64
	closed      bool
}

// Create creates a new, empty record file at opts.Path, truncating any
// existing file.
//
// Possible errors:
//   - [ErrInvalidInput]: empty path
//   - I/O errors from opening or writing the file
func Create(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	fsys := opts.filesystem()

	file, err := fsys.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, opts.perm())
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	_, err = file.WriteAt(encodeHeader(header{}), 0)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("write header: %w", err), file.Close())
	}

	s := newStore(opts, fsys, file, header{})
	s.log.Debug().Msg("created record file")

	return s, nil
}

// Open opens an existing record file.
//
// Open reads the header and checks the counters for impossible values. It
// does not scan the data region unless [Options.Verify] is set.
//
// Possible errors:
//   - [ErrInvalidInput]: empty path
//   - [ErrTruncatedHeader]: file shorter than the header
//   - [ErrCorrupt]: impossible header counters, or a failed verification
//     (the error is then also a [*FormatError])
//   - I/O errors from opening or reading the file
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	fsys := opts.filesystem()

	if opts.Verify {
		err := ValidateFS(fsys, opts.Path)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
	}

	file, err := fsys.OpenFile(opts.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	hdr, err := readHeader(file)
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}

	s := newStore(opts, fsys, file, hdr)
	s.log.Debug().
		Int64("records", hdr.count).
		Int64("span", hdr.totalSpan).
		Int64("live_span", hdr.liveSpan).
		Msg("opened record file")

	return s, nil
}

func newStore(opts Options, fsys fs.FS, file fs.File, hdr header) *Store {
	s := &Store{
		fsys: fsys,
		path: opts.Path,
		perm: opts.perm(),
		log:  opts.logger(),
		file: file,
		hdr:  hdr,
	}
	s.resetCursor()

	return s
}

// readHeader reads and checks the file header.
func readHeader(r io.ReaderAt) (header, error) {
	buf := make([]byte, headerSize)

	n, err := r.ReadAt(buf, 0)
	if n < headerSize {
		if err == nil || errors.Is(err, io.EOF) {
			return header{}, fmt.Errorf("read %d of %d header bytes: %w", n, headerSize, ErrTruncatedHeader)
		}

		return header{}, fmt.Errorf("read header: %w", err)
	}

	hdr := decodeHeader(buf)

	if code := hdr.check(); code != OK {
		return header{}, fmt.Errorf("header: %s: %w", code, ErrCorrupt)
	}

	return hdr, nil
}

// Close writes the header counters back and releases the file.
//
// The file is closed even when writing the header fails.
// Returns [ErrClosed] if the store was already closed.
func (s *Store) Close() error {
	if s.closed {
		return ErrClosed
	}

	s.closed = true

	_, writeErr := s.file.WriteAt(encodeHeader(s.hdr), 0)
	if writeErr != nil {
		writeErr = fmt.Errorf("write header: %w", writeErr)
	}

	closeErr := s.file.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close file: %w", closeErr)
	}

	s.log.Debug().Int64("records", s.hdr.count).Msg("closed record file")

	return errors.Join(writeErr, closeErr)
}

// Sync writes the header counters and flushes file data to stable storage
// without closing the store.
func (s *Store) Sync() error {
	if s.closed {
		return ErrClosed
	}

	_, err := s.file.WriteAt(encodeHeader(s.hdr), 0)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	err = syncData(s.file)
	if err != nil {
		return fmt.Errorf("sync data: %w", err)
	}

	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of live records.
func (s *Store) Len() int64 {
	return s.hdr.count
}

// Span returns the size of the data region in bytes, including slack and
// tombstones.
func (s *Store) Span() int64 {
	return s.hdr.totalSpan
}

// LiveSpan returns the size the data region would have after [Store.Compact].
func (s *Store) LiveSpan() int64 {
	return s.hdr.liveSpan
}

// Stats is a snapshot of a store's counters.
type Stats struct {
	// Records is the number of live records.
	Records int64
	// Span is the size of the data region in bytes.
	Span int64
	// LiveSpan is the size of the data region after compaction.
	LiveSpan int64
	// Reclaimable is Span - LiveSpan: bytes held by tombstones and slack.
	Reclaimable int64
	// Compactions counts successful [Store.Compact] calls on this store.
	Compactions int64
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() Stats {
	return Stats{
		Records:     s.hdr.count,
		Span:        s.hdr.totalSpan,
		LiveSpan:    s.hdr.liveSpan,
		Reclaimable: s.hdr.totalSpan - s.hdr.liveSpan,
		Compactions: s.compactions,
	}
}
