package recfile

import "math"

// Hardcoded format limits.
//
// They keep offset arithmetic away from int64 overflow and let a corrupt
// header be rejected before it drives a scan.
const (
	// MaxSpan is the largest data region a header may declare.
	MaxSpan = int64(math.MaxInt64 - headerSize)

	// MaxRecordSize is the largest record payload, in bytes.
	MaxRecordSize = uint32(math.MaxUint32 - slotHeaderSize)
)
