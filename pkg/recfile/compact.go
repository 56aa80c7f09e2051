package recfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/calvinalkan/recfile/pkg/fs"
)

// compactTag names the temp files written by [Store.Compact].
const compactTag = "compact"

// Compact rewrites the file without tombstones and slack.
//
// Every live record is copied, in order, into a fresh temp file in the same
// directory with its capacity shrunk to its length. The temp file is synced
// and renamed over the original, then reopened. Afterwards Span() ==
// LiveSpan(), and compacting again produces a byte-identical file.
//
// Possible errors:
//   - [ErrCompact]: the rewrite failed before the original was replaced.
//     The original file is untouched, the temp file is removed and the
//     store stays usable. The cause is wrapped as well (for example
//     [ErrCorrupt] when the data region disagrees with the header).
//   - Any other error means the replacement happened but the new file could
//     not be reopened. The store is closed.
func (s *Store) Compact() error {
	if s.closed {
		return ErrClosed
	}

	start := time.Now()
	before := s.hdr

	perm := s.perm

	info, statErr := s.file.Stat()
	if statErr == nil {
		perm = info.Mode().Perm()
	}

	src := newCompactReader(s.file, s.hdr)
	writer := fs.NewAtomicWriter(s.fsys)

	err := writer.Write(s.path, src, fs.AtomicWriteOptions{SyncDir: true, Perm: perm, Tag: compactTag})
	if err != nil {
		if !errors.Is(err, fs.ErrAtomicWriteDirSync) {
			s.log.Warn().Err(err).Msg("compaction aborted, original kept")

			return fmt.Errorf("%w: %w", ErrCompact, err)
		}

		// The new file is in place; only its directory entry may not be durable yet.
		s.log.Warn().Err(err).Msg("compaction replaced file, directory sync failed")
	}

	err = s.reopen()
	if err != nil {
		return fmt.Errorf("reopen after compact: %w", err)
	}

	s.compactions++
	s.log.Info().
		Int64("records", s.hdr.count).
		Int64("span_before", before.totalSpan).
		Int64("span_after", s.hdr.totalSpan).
		Dur("took", time.Since(start)).
		Msg("compacted record file")

	return nil
}

// reopen swaps the file handle for a fresh one on s.path and reloads the
// header. On failure the store is closed.
func (s *Store) reopen() error {
	oldFile := s.file

	file, err := s.fsys.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		s.closed = true

		return errors.Join(fmt.Errorf("open file: %w", err), oldFile.Close())
	}

	hdr, err := readHeader(file)
	if err != nil {
		s.closed = true

		return errors.Join(err, file.Close(), oldFile.Close())
	}

	s.file = file
	s.hdr = hdr
	s.resetCursor()

	err = oldFile.Close()
	if err != nil {
		s.log.Warn().Err(err).Msg("close replaced file")
	}

	return nil
}

// compactReader streams the compacted form of a record file: a new header
// followed by every live slot with capacity == used.
//
// It verifies while streaming that the live slots add up to the header's
// liveSpan and count; a mismatch fails the read with [ErrCorrupt] so that a
// corrupt file is never committed over the original.
type compactReader struct {
	src io.ReaderAt
	hdr header

	off int64
	end int64

	pending []byte

	payloadOff  int64
	payloadLeft int64

	copiedSpan  int64
	copiedCount int64
}

func newCompactReader(src io.ReaderAt, hdr header) *compactReader {
	newHdr := header{totalSpan: hdr.liveSpan, liveSpan: hdr.liveSpan, count: hdr.count}

	return &compactReader{
		src:     src,
		hdr:     hdr,
		off:     headerSize,
		end:     hdr.dataEnd(),
		pending: encodeHeader(newHdr),
	}
}

func (r *compactReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if len(r.pending) > 0 {
			n := copy(p, r.pending)
			r.pending = r.pending[n:]

			return n, nil
		}

		if r.payloadLeft > 0 {
			return r.readPayload(p)
		}

		if r.off >= r.end {
			return 0, r.finish()
		}

		sh, err := readSlotWithin(r.src, r.off, r.end)
		if err != nil {
			return 0, err
		}

		slotOff := r.off
		r.off += sh.span()

		if !sh.live() {
			continue
		}

		r.pending = encodeSlotHeader(slotHeader{capacity: sh.used, used: sh.used})
		r.payloadOff = payloadOffset(slotOff)
		r.payloadLeft = int64(sh.used)
		r.copiedSpan += sh.liveSpan()
		r.copiedCount++
	}
}

func (r *compactReader) readPayload(p []byte) (int, error) {
	want := min(int64(len(p)), r.payloadLeft)

	n, err := r.src.ReadAt(p[:want], r.payloadOff)
	r.payloadOff += int64(n)
	r.payloadLeft -= int64(n)

	if int64(n) == want {
		return n, nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		return n, fmt.Errorf("payload at offset %d truncated: %w", r.payloadOff, ErrCorrupt)
	}

	return n, err
}

func (r *compactReader) finish() error {
	if r.copiedCount != r.hdr.count {
		return fmt.Errorf("found %d live records, header says %d: %w", r.copiedCount, r.hdr.count, ErrCorrupt)
	}

	if r.copiedSpan != r.hdr.liveSpan {
		return fmt.Errorf("live records span %d bytes, header says %d: %w", r.copiedSpan, r.hdr.liveSpan, ErrCorrupt)
	}

	return io.EOF
}
