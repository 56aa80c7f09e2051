package recfile

import (
	"fmt"
	"iter"
)

func (s *Store) checkIndex(index int64) error {
	if s.closed {
		return ErrClosed
	}

	if index < 0 || index >= s.hdr.count {
		return fmt.Errorf("index %d, have %d records: %w", index, s.hdr.count, ErrOutOfRange)
	}

	return nil
}

func checkLength(n uint32) error {
	if n == 0 {
		return fmt.Errorf("zero-length record: %w", ErrInvalidInput)
	}

	if n > MaxRecordSize {
		return fmt.Errorf("record length %d exceeds max %d: %w", n, MaxRecordSize, ErrInvalidInput)
	}

	return nil
}

func lengthOf(p []byte) (uint32, error) {
	if uint64(len(p)) > uint64(MaxRecordSize) {
		return 0, fmt.Errorf("record length %d exceeds max %d: %w", len(p), MaxRecordSize, ErrInvalidInput)
	}

	return uint32(len(p)), nil
}

// Get reads record index through dec and returns its length.
//
// After the read the cursor moves on to the next record, so a forward pass
// Get(0), Get(1), ... costs O(1) per record.
//
// Possible errors:
//   - [ErrOutOfRange]: index not in 0..Len()-1
//   - [ErrCorrupt]: the data region disagrees with the header
//   - errors returned by dec, and I/O errors
func (s *Store) Get(index int64, dec Decoder) (uint32, error) {
	err := s.checkIndex(index)
	if err != nil {
		return 0, err
	}

	sh, err := s.seek(index)
	if err != nil {
		return 0, fmt.Errorf("get %d: %w", index, err)
	}

	err = decodePayload(s.file, payloadOffset(s.cur.offset), sh.used, dec)
	if err != nil {
		return 0, fmt.Errorf("get %d: %w", index, err)
	}

	err = s.advance(sh)
	if err != nil {
		return 0, fmt.Errorf("get %d: %w", index, err)
	}

	return sh.used, nil
}

// GetBytes returns a copy of record index.
func (s *Store) GetBytes(index int64) ([]byte, error) {
	var buf Buffer

	_, err := s.Get(index, &buf)
	if err != nil {
		return nil, err
	}

	return buf.Data, nil
}

// Capacity returns the number of payload bytes reserved for record index,
// which is the largest length [Store.Set] accepts for it.
func (s *Store) Capacity(index int64) (uint32, error) {
	err := s.checkIndex(index)
	if err != nil {
		return 0, err
	}

	sh, err := s.seek(index)
	if err != nil {
		return 0, fmt.Errorf("capacity %d: %w", index, err)
	}

	return sh.capacity, nil
}

// Set overwrites record index in place with n bytes written by enc.
//
// The record's capacity never changes: n may be anything from 1 up to the
// capacity the record was added with. Bytes beyond n become slack and are
// left as they are.
//
// Possible errors:
//   - [ErrOutOfRange]: index not in 0..Len()-1
//   - [ErrInvalidInput]: n == 0 (zero length marks deleted slots)
//   - [ErrCapacityExceeded]: n larger than the record's capacity; nothing
//     is modified
//   - [ErrShortPayload], [ErrPayloadOverflow]: enc wrote the wrong amount;
//     the record keeps its old length
//   - [ErrCorrupt], I/O errors
func (s *Store) Set(index int64, n uint32, enc Encoder) error {
	err := s.checkIndex(index)
	if err != nil {
		return err
	}

	err = checkLength(n)
	if err != nil {
		return err
	}

	sh, err := s.seek(index)
	if err != nil {
		return fmt.Errorf("set %d: %w", index, err)
	}

	if n > sh.capacity {
		return fmt.Errorf("set %d: length %d, capacity %d: %w", index, n, sh.capacity, ErrCapacityExceeded)
	}

	off := s.cur.offset

	err = encodePayload(s.file, payloadOffset(off), n, enc)
	if err != nil {
		return fmt.Errorf("set %d: %w", index, err)
	}

	err = writeSlotUsed(s.file, off, n)
	if err != nil {
		return fmt.Errorf("set %d: %w", index, err)
	}

	s.hdr.liveSpan += int64(n) - int64(sh.used)

	return nil
}

// SetBytes overwrites record index with p. See [Store.Set].
func (s *Store) SetBytes(index int64, p []byte) error {
	n, err := lengthOf(p)
	if err != nil {
		return err
	}

	return s.Set(index, n, Bytes(p))
}

// Add appends a record of n bytes written by enc. The new record's capacity
// is n.
//
// The payload is written past the end of the data region first and only
// becomes part of the file when the counters are updated, so a failing enc
// leaves the store unchanged.
//
// Possible errors:
//   - [ErrInvalidInput]: n == 0, n > [MaxRecordSize], or the data region
//     would exceed [MaxSpan]
//   - [ErrShortPayload], [ErrPayloadOverflow]: enc wrote the wrong amount
//   - I/O errors
func (s *Store) Add(n uint32, enc Encoder) error {
	if s.closed {
		return ErrClosed
	}

	err := checkLength(n)
	if err != nil {
		return err
	}

	sh := slotHeader{capacity: n, used: n}

	if s.hdr.totalSpan > MaxSpan-sh.span() {
		return fmt.Errorf("add: data region would exceed %d bytes: %w", MaxSpan, ErrInvalidInput)
	}

	_, err = s.seek(s.hdr.count)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	off := s.cur.offset

	err = encodePayload(s.file, payloadOffset(off), n, enc)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	err = writeSlotHeader(s.file, off, sh)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	s.hdr.count++
	s.hdr.totalSpan += sh.span()
	s.hdr.liveSpan += sh.liveSpan()
	s.cur = cursor{index: s.hdr.count, offset: off + sh.span(), valid: true}

	return nil
}

// AddBytes appends p as a new record. See [Store.Add].
func (s *Store) AddBytes(p []byte) error {
	n, err := lengthOf(p)
	if err != nil {
		return err
	}

	return s.Add(n, Bytes(p))
}

// RemoveAt soft-deletes record index. Later records shift down by one
// logical index. The slot's bytes stay allocated until [Store.Compact].
//
// Possible errors:
//   - [ErrOutOfRange]: index not in 0..Len()-1
//   - [ErrCorrupt], I/O errors
func (s *Store) RemoveAt(index int64) error {
	err := s.checkIndex(index)
	if err != nil {
		return err
	}

	sh, err := s.seek(index)
	if err != nil {
		return fmt.Errorf("remove %d: %w", index, err)
	}

	off := s.cur.offset

	err = writeSlotUsed(s.file, off, 0)
	if err != nil {
		return fmt.Errorf("remove %d: %w", index, err)
	}

	s.hdr.liveSpan -= sh.liveSpan()
	s.hdr.count--

	// The record that now has this index lives after the tombstone.
	s.cur = cursor{index: index, offset: off + sh.span(), valid: true}

	return nil
}

// All iterates over every record in order, yielding copies.
//
// Iteration stops at the first error, which is yielded with a nil record.
// The store must not be modified during iteration.
func (s *Store) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for i := range s.hdr.count {
			data, err := s.GetBytes(i)
			if !yield(data, err) || err != nil {
				return
			}
		}
	}
}
