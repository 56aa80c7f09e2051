package recfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// File layout constants.
const (
	// Fixed file header size in bytes: three int64 counters.
	headerSize = 24

	// Fixed slot header size in bytes: two uint32 fields.
	slotHeaderSize = 8
)

// Header field offsets (bytes from file start).
const (
	offTotalSpan = 0x00 // int64
	offLiveSpan  = 0x08 // int64
	offCount     = 0x10 // int64
)

// Slot header field offsets (bytes from slot start).
const (
	offSlotCapacity = 0x0 // uint32
	offSlotUsed     = 0x4 // uint32
)

// byteOrder is the on-disk integer encoding. Files are not portable across
// machines with different byte orders.
var byteOrder = binary.NativeEndian

// header holds the three file counters.
type header struct {
	// totalSpan is the size of the data region, including slack and tombstones.
	totalSpan int64
	// liveSpan is the size the data region would have after compaction.
	liveSpan int64
	// count is the number of live records.
	count int64
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	byteOrder.PutUint64(buf[offTotalSpan:], uint64(h.totalSpan))
	byteOrder.PutUint64(buf[offLiveSpan:], uint64(h.liveSpan))
	byteOrder.PutUint64(buf[offCount:], uint64(h.count))

	return buf
}

func decodeHeader(buf []byte) header {
	_ = buf[headerSize-1]

	return header{
		totalSpan: int64(byteOrder.Uint64(buf[offTotalSpan:])),
		liveSpan:  int64(byteOrder.Uint64(buf[offLiveSpan:])),
		count:     int64(byteOrder.Uint64(buf[offCount:])),
	}
}

// check applies the header-only invariants, in the order [Validate] reports
// them. Returns [OK] when the counters are plausible.
func (h header) check() Code {
	switch {
	case h.totalSpan > MaxSpan:
		return CodeSpanTooLarge
	case h.totalSpan < 0:
		return CodeSpanNegative
	case h.liveSpan > MaxSpan:
		return CodeLiveSpanTooLarge
	case h.liveSpan < 0:
		return CodeLiveSpanNegative
	case h.count < 0:
		return CodeCountNegative
	case h.count > 0 && h.totalSpan == 0:
		return CodeInconsistentSpan
	case h.count == 0 && h.liveSpan != 0:
		return CodeInconsistentLiveSpan
	case h.liveSpan > h.totalSpan:
		return CodeInconsistentLiveSpan
	}

	return OK
}

// dataEnd returns the absolute offset just past the data region.
func (h header) dataEnd() int64 {
	return headerSize + h.totalSpan
}

// slotHeader is the fixed prefix of every slot.
type slotHeader struct {
	capacity uint32
	used     uint32
}

// live reports whether the slot holds a record (is not a tombstone).
func (sh slotHeader) live() bool {
	return sh.used != 0
}

// span returns the number of bytes the slot occupies on disk.
func (sh slotHeader) span() int64 {
	return slotHeaderSize + int64(sh.capacity)
}

// liveSpan returns the number of bytes the slot occupies after compaction.
func (sh slotHeader) liveSpan() int64 {
	return slotHeaderSize + int64(sh.used)
}

func encodeSlotHeader(sh slotHeader) []byte {
	buf := make([]byte, slotHeaderSize)
	byteOrder.PutUint32(buf[offSlotCapacity:], sh.capacity)
	byteOrder.PutUint32(buf[offSlotUsed:], sh.used)

	return buf
}

// errShortSlotHeader marks a slot header read that hit end of file.
var errShortSlotHeader = errors.New("short slot header")

// readSlotHeader reads the slot header at off.
//
// Returns an error wrapping errShortSlotHeader if fewer than 8 bytes are
// available, or the underlying I/O error.
func readSlotHeader(r io.ReaderAt, off int64) (slotHeader, error) {
	var buf [slotHeaderSize]byte

	n, err := r.ReadAt(buf[:], off)
	if n < slotHeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			return slotHeader{}, fmt.Errorf("slot at offset %d: %w", off, errShortSlotHeader)
		}

		return slotHeader{}, fmt.Errorf("read slot header at offset %d: %w", off, err)
	}

	return slotHeader{
		capacity: byteOrder.Uint32(buf[offSlotCapacity:]),
		used:     byteOrder.Uint32(buf[offSlotUsed:]),
	}, nil
}

func writeSlotHeader(w io.WriterAt, off int64, sh slotHeader) error {
	_, err := w.WriteAt(encodeSlotHeader(sh), off)
	if err != nil {
		return fmt.Errorf("write slot header at offset %d: %w", off, err)
	}

	return nil
}

// writeSlotUsed overwrites only the used-length field of the slot at off.
func writeSlotUsed(w io.WriterAt, off int64, used uint32) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], used)

	_, err := w.WriteAt(buf[:], off+offSlotUsed)
	if err != nil {
		return fmt.Errorf("write slot length at offset %d: %w", off, err)
	}

	return nil
}

// readSlotWithin reads the slot header at off and checks that the whole slot
// lies inside the data region ending at end and that used <= capacity.
//
// Every scan over the data region goes through here, which is what bounds
// scans on a corrupt file. Violations return [ErrCorrupt].
func readSlotWithin(r io.ReaderAt, off, end int64) (slotHeader, error) {
	if off+slotHeaderSize > end {
		return slotHeader{}, fmt.Errorf("slot header at offset %d crosses data end %d: %w", off, end, ErrCorrupt)
	}

	sh, err := readSlotHeader(r, off)
	if err != nil {
		if errors.Is(err, errShortSlotHeader) {
			return slotHeader{}, fmt.Errorf("%w: %w", err, ErrCorrupt)
		}

		return slotHeader{}, err
	}

	if sh.used > sh.capacity {
		return slotHeader{}, fmt.Errorf("slot at offset %d: length %d exceeds capacity %d: %w", off, sh.used, sh.capacity, ErrCorrupt)
	}

	if off+sh.span() > end {
		return slotHeader{}, fmt.Errorf("slot at offset %d with capacity %d crosses data end %d: %w", off, sh.capacity, end, ErrCorrupt)
	}

	return sh, nil
}

// payloadOffset returns the absolute offset of the payload of the slot at off.
func payloadOffset(off int64) int64 {
	return off + slotHeaderSize
}
