package recfile

// cursor caches where the last operation left off in the data region.
//
// Invariant while valid: the first live slot at or after offset has logical
// index index. When index == count there is no live slot at or after offset.
// Sequential access continues scanning from the cursor instead of from the
// start of the data region, which keeps a forward pass O(1) per record.
type cursor struct {
	index  int64
	offset int64
	valid  bool
}

// seek positions the cursor on the slot holding logical index target and
// returns that slot's header.
//
// target == count positions the cursor on the append point in O(1) and
// returns a zero slotHeader. Any other target requires 0 <= target < count;
// callers check the range first.
//
// The scan restarts from the first slot when the cursor is invalid, past the
// target, or the target is 0. Otherwise it resumes from the cursor.
// Corruption met during the scan invalidates the cursor and returns
// [ErrCorrupt].
func (s *Store) seek(target int64) (slotHeader, error) {
	if target == s.hdr.count {
		s.cur = cursor{index: target, offset: s.hdr.dataEnd(), valid: true}

		return slotHeader{}, nil
	}

	index, off := s.cur.index, s.cur.offset
	if !s.cur.valid || index > target || target == 0 {
		index, off = 0, headerSize
	}

	end := s.hdr.dataEnd()

	for {
		sh, err := readSlotWithin(s.file, off, end)
		if err != nil {
			s.cur.valid = false

			return slotHeader{}, err
		}

		if sh.live() {
			if index == target {
				s.cur = cursor{index: target, offset: off, valid: true}

				return sh, nil
			}

			index++
		}

		off += sh.span()
	}
}

// advance moves the cursor from the live slot it is on (with header sh) to
// the next live slot, skipping tombstones.
//
// When the cursor is on the last record it stays there: there is nothing to
// move to and the next sequential access will ask for this index or restart.
func (s *Store) advance(sh slotHeader) error {
	if s.cur.index >= s.hdr.count-1 {
		return nil
	}

	off := s.cur.offset + sh.span()
	end := s.hdr.dataEnd()

	for {
		next, err := readSlotWithin(s.file, off, end)
		if err != nil {
			s.cur.valid = false

			return err
		}

		if next.live() {
			s.cur = cursor{index: s.cur.index + 1, offset: off, valid: true}

			return nil
		}

		off += next.span()
	}
}

// resetCursor points the cursor at the first slot.
func (s *Store) resetCursor() {
	s.cur = cursor{index: 0, offset: headerSize, valid: true}
}
