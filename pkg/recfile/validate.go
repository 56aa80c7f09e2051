package recfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/calvinalkan/recfile/pkg/fs"
)

// Code identifies the first structural problem [Validate] found in a file.
type Code int

// Validation outcomes, in the order the checks run.
const (
	// OK means the file is structurally sound.
	OK Code = iota
	// CodeOpen means the file could not be opened or read.
	CodeOpen
	// CodeMalformedHeader means the file is shorter than the 24-byte header.
	CodeMalformedHeader
	// CodeSpanTooLarge means the total span exceeds [MaxSpan].
	CodeSpanTooLarge
	// CodeSpanNegative means the total span is negative.
	CodeSpanNegative
	// CodeLiveSpanTooLarge means the live span exceeds [MaxSpan].
	CodeLiveSpanTooLarge
	// CodeLiveSpanNegative means the live span is negative.
	CodeLiveSpanNegative
	// CodeCountNegative means the record count is negative.
	CodeCountNegative
	// CodeMalformedSlotHeader means a slot header could not be read in full.
	CodeMalformedSlotHeader
	// CodeInconsistentSpan means the slots do not tile the data region the
	// header declares, or the file is shorter than the data region.
	CodeInconsistentSpan
	// CodeInconsistentLiveSpan means the live span disagrees with the record
	// count, the total span or the live slots.
	CodeInconsistentLiveSpan
	// CodeInconsistentSlotLength means a slot's used length exceeds its
	// capacity.
	CodeInconsistentSlotLength
	// CodeInconsistentCount means the number of live slots differs from the
	// record count.
	CodeInconsistentCount
)

var codeText = [...]string{
	OK:                         "no error",
	CodeOpen:                   "cannot open file",
	CodeMalformedHeader:        "malformed header",
	CodeSpanTooLarge:           "span too large",
	CodeSpanNegative:           "span negative",
	CodeLiveSpanTooLarge:       "live span too large",
	CodeLiveSpanNegative:       "live span negative",
	CodeCountNegative:          "record count negative",
	CodeMalformedSlotHeader:    "malformed slot header",
	CodeInconsistentSpan:       "inconsistent span",
	CodeInconsistentLiveSpan:   "inconsistent live span",
	CodeInconsistentSlotLength: "inconsistent slot length",
	CodeInconsistentCount:      "inconsistent record count",
}

// String returns a short human-readable description of c.
func (c Code) String() string {
	if c < 0 || int(c) >= len(codeText) {
		return fmt.Sprintf("unknown code %d", int(c))
	}

	return codeText[c]
}

// FormatError is the error returned by [Validate] for a file that failed a
// check.
//
// A FormatError matches [ErrCorrupt] via errors.Is, except for [CodeOpen]
// which wraps the underlying I/O error instead.
type FormatError struct {
	// Code is the failed check.
	Code Code
	// Offset is the absolute file offset of the offending slot, or 0 for
	// header checks.
	Offset int64
	// Err is the underlying cause, if any.
	Err error
}

func (e *FormatError) Error() string {
	msg := "recfile: validate: " + e.Code.String()

	if e.Offset > 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrCorrupt] and e describes corruption.
func (e *FormatError) Is(target error) bool {
	return target == ErrCorrupt && e.Code != OK && e.Code != CodeOpen
}

// CodeOf returns the [Code] carried by err. It returns [OK] for a nil error
// and [CodeOpen] for errors that carry no code.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}

	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Code
	}

	return CodeOpen
}

// Validate checks the structure of the closed record file at path.
//
// It re-derives everything from the bytes on disk and shares no state with
// any [Store]. The first failed check is returned as a [*FormatError]; nil
// means the file is sound.
//
// Checks, in order:
//   - the 24-byte header is present
//   - total span and live span within [0, MaxSpan], record count >= 0
//   - record count > 0 implies total span > 0
//   - record count == 0 implies live span == 0, and live span <= total span
//   - every slot header is complete, used <= capacity, and the slot ends
//     inside both the declared data region and the file
//   - the slots end exactly at the declared data region end
//   - the live slots number exactly the record count and add up to the
//     live span
func Validate(path string) error {
	return ValidateFS(fs.NewReal(), path)
}

// ValidateFS is [Validate] against fsys.
func ValidateFS(fsys fs.FS, path string) error {
	file, err := fsys.Open(path)
	if err != nil {
		return &FormatError{Code: CodeOpen, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		return errors.Join(&FormatError{Code: CodeOpen, Err: err}, file.Close())
	}

	err = validateFile(file, info.Size())

	closeErr := file.Close()
	if err == nil && closeErr != nil {
		return &FormatError{Code: CodeOpen, Err: closeErr}
	}

	return err
}

// validateFile checks a record file of size bytes read through r.
func validateFile(r io.ReaderAt, size int64) error {
	buf := make([]byte, headerSize)

	n, err := r.ReadAt(buf, 0)
	if n < headerSize {
		if err == nil || errors.Is(err, io.EOF) {
			return &FormatError{Code: CodeMalformedHeader}
		}

		return &FormatError{Code: CodeOpen, Err: err}
	}

	hdr := decodeHeader(buf)

	if code := hdr.check(); code != OK {
		return &FormatError{Code: code}
	}

	return scanSlots(r, hdr, size)
}

// scanSlots walks every slot of the data region declared by hdr.
//
// The walk runs even for an empty file so that a stale span, or a slot
// count disagreeing with the header, is caught.
func scanSlots(r io.ReaderAt, hdr header, size int64) error {
	end := hdr.dataEnd()

	var (
		live      int64
		liveBytes int64
	)

	off := int64(headerSize)

	for off < end {
		if off+slotHeaderSize > end {
			return &FormatError{Code: CodeInconsistentSpan, Offset: off}
		}

		sh, err := readSlotHeader(r, off)
		if err != nil {
			if errors.Is(err, errShortSlotHeader) {
				return &FormatError{Code: CodeMalformedSlotHeader, Offset: off}
			}

			return &FormatError{Code: CodeOpen, Offset: off, Err: err}
		}

		if sh.used > sh.capacity {
			return &FormatError{
				Code:   CodeInconsistentSlotLength,
				Offset: off,
				Err:    fmt.Errorf("length %d, capacity %d", sh.used, sh.capacity),
			}
		}

		slotEnd := off + sh.span()

		if slotEnd > end {
			return &FormatError{
				Code:   CodeInconsistentSpan,
				Offset: off,
				Err:    fmt.Errorf("slot ends at %d, data region ends at %d", slotEnd, end),
			}
		}

		if slotEnd > size {
			return &FormatError{
				Code:   CodeInconsistentSpan,
				Offset: off,
				Err:    fmt.Errorf("slot ends at %d, file is %d bytes", slotEnd, size),
			}
		}

		if sh.live() {
			live++
			liveBytes += sh.liveSpan()

			if live > hdr.count {
				return &FormatError{
					Code:   CodeInconsistentCount,
					Offset: off,
					Err:    fmt.Errorf("more than %d live slots", hdr.count),
				}
			}
		}

		off = slotEnd
	}

	if live != hdr.count {
		return &FormatError{
			Code: CodeInconsistentCount,
			Err:  fmt.Errorf("%d live slots, header says %d", live, hdr.count),
		}
	}

	if liveBytes != hdr.liveSpan {
		return &FormatError{
			Code: CodeInconsistentLiveSpan,
			Err:  fmt.Errorf("live slots span %d bytes, header says %d", liveBytes, hdr.liveSpan),
		}
	}

	return nil
}
