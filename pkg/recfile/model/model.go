// Package model provides a deliberately simple, in-memory state model of
// recfile's publicly observable behavior.
//
// The model keeps every slot, including tombstones and slack, so that the
// span counters can be checked against the real store. It favors clarity over
// performance: every index lookup is a linear walk.
package model

import (
	"fmt"
	"slices"

	"github.com/calvinalkan/recfile/pkg/recfile"
)

// slotHeaderSize mirrors the on-disk slot header size.
const slotHeaderSize = 8

// Slot is one slot of the data region, live or tombstoned.
type Slot struct {
	// Capacity is fixed when the record is added.
	Capacity uint32
	// Data holds the record bytes. len(Data) is the used length.
	Data []byte
	// Live is false for tombstones.
	Live bool
}

// File is the modelled content of a record file.
type File struct {
	Slots []Slot
}

// New returns an empty file.
func New() *File {
	return &File{}
}

// Clone makes a deep copy so tests can fork the exact same state.
// It preserves the nil vs empty slice distinction.
func (f *File) Clone() *File {
	if f.Slots == nil {
		return &File{}
	}

	slots := make([]Slot, len(f.Slots))
	for i, s := range f.Slots {
		slots[i] = Slot{Capacity: s.Capacity, Data: slices.Clone(s.Data), Live: s.Live}
	}

	return &File{Slots: slots}
}

// Len returns the number of live records.
func (f *File) Len() int64 {
	var n int64

	for _, s := range f.Slots {
		if s.Live {
			n++
		}
	}

	return n
}

// Span returns the size of the data region, tombstones and slack included.
func (f *File) Span() int64 {
	var n int64

	for _, s := range f.Slots {
		n += slotHeaderSize + int64(s.Capacity)
	}

	return n
}

// LiveSpan returns the size the data region has after compaction.
func (f *File) LiveSpan() int64 {
	var n int64

	for _, s := range f.Slots {
		if s.Live {
			n += slotHeaderSize + int64(len(s.Data))
		}
	}

	return n
}

// Records returns copies of every live record in order.
func (f *File) Records() [][]byte {
	out := make([][]byte, 0, len(f.Slots))

	for _, s := range f.Slots {
		if s.Live {
			out = append(out, slices.Clone(s.Data))
		}
	}

	return out
}

// slot returns the position in Slots of live record index.
func (f *File) slot(index int64) (int, error) {
	if index >= 0 {
		var seen int64

		for i, s := range f.Slots {
			if !s.Live {
				continue
			}

			if seen == index {
				return i, nil
			}

			seen++
		}
	}

	return 0, fmt.Errorf("index %d, have %d records: %w", index, f.Len(), recfile.ErrOutOfRange)
}

// Get returns a copy of record index.
func (f *File) Get(index int64) ([]byte, error) {
	i, err := f.slot(index)
	if err != nil {
		return nil, err
	}

	return slices.Clone(f.Slots[i].Data), nil
}

// Capacity returns the capacity of record index.
func (f *File) Capacity(index int64) (uint32, error) {
	i, err := f.slot(index)
	if err != nil {
		return 0, err
	}

	return f.Slots[i].Capacity, nil
}

// Add appends data as a new record with capacity len(data).
func (f *File) Add(data []byte) error {
	if len(data) == 0 {
		return recfile.ErrInvalidInput
	}

	f.Slots = append(f.Slots, Slot{Capacity: uint32(len(data)), Data: slices.Clone(data), Live: true})

	return nil
}

// Set replaces record index with data, keeping the slot's capacity.
func (f *File) Set(index int64, data []byte) error {
	i, err := f.slot(index)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return recfile.ErrInvalidInput
	}

	if uint64(len(data)) > uint64(f.Slots[i].Capacity) {
		return recfile.ErrCapacityExceeded
	}

	f.Slots[i].Data = slices.Clone(data)

	return nil
}

// RemoveAt tombstones record index. The slot keeps its capacity.
func (f *File) RemoveAt(index int64) error {
	i, err := f.slot(index)
	if err != nil {
		return err
	}

	f.Slots[i].Live = false
	f.Slots[i].Data = nil

	return nil
}

// Compact drops tombstones and shrinks every capacity to its used length.
func (f *File) Compact() {
	var slots []Slot

	for _, s := range f.Slots {
		if !s.Live {
			continue
		}

		slots = append(slots, Slot{Capacity: uint32(len(s.Data)), Data: s.Data, Live: true})
	}

	f.Slots = slots
}
