package recfile

import "errors"

// Sentinel errors returned by recfile operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, recfile.ErrCapacityExceeded) {
//	    // remove and re-add the record instead
//	}
var (
	// ErrClosed indicates the [Store] has already been closed.
	//
	// This is a programming error.
	ErrClosed = errors.New("recfile: closed")

	// ErrOutOfRange indicates a logical index outside 0..Len()-1.
	//
	// This is a programming error.
	ErrOutOfRange = errors.New("recfile: index out of range")

	// ErrCapacityExceeded indicates [Store.Set] was asked to store more bytes
	// than the record's slot can hold.
	//
	// Slot capacity is fixed when the record is added. Nothing is modified.
	//
	// Recovery: remove the record and add the new value, or write a shorter
	// value.
	ErrCapacityExceeded = errors.New("recfile: capacity exceeded")

	// ErrTruncatedHeader indicates the file is shorter than the 24-byte header.
	ErrTruncatedHeader = errors.New("recfile: truncated header")

	// ErrCorrupt indicates the file contents disagree with its header.
	//
	// Returned when a scan would leave the data region, when a slot header
	// is unreadable or inconsistent, or when header counters are impossible.
	// [FormatError] values returned by [Validate] also match ErrCorrupt.
	//
	// Recovery: restore the file from a backup; [Validate] reports details.
	ErrCorrupt = errors.New("recfile: corrupt")

	// ErrInvalidInput indicates invalid arguments were provided.
	//
	// Common causes: empty path, zero-length record, record larger than
	// [MaxRecordSize], encoder payload length mismatch.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("recfile: invalid input")

	// ErrShortPayload indicates an [Encoder] wrote fewer bytes than requested.
	//
	// For Add the record is not appended. For Set the record keeps its old
	// length, but its leading payload bytes may have been overwritten.
	ErrShortPayload = errors.New("recfile: short payload")

	// ErrPayloadOverflow indicates an [Encoder] tried to write more bytes than
	// requested. The excess write is refused.
	ErrPayloadOverflow = errors.New("recfile: payload overflow")

	// ErrCompact indicates [Store.Compact] failed before the rewritten file
	// replaced the original.
	//
	// The original file is untouched, temporary files are removed, and the
	// store remains usable.
	ErrCompact = errors.New("recfile: compact failed")
)
