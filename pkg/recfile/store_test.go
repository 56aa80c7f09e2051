// Store behavior tests.
//
// These tests verify the public operations of a Store:
//
// 1. Index semantics: logical indices skip tombstones and renumber on delete
// 2. Span bookkeeping: Span and LiveSpan follow every mutation
// 3. Persistence: counters survive Close/Open
// 4. Input validation: range, length, encoder and closed-store errors
//
// Oracle: Hand-computed spans and the byte layout of the file
// Technique: Scripted operation sequences

package recfile_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recfile/pkg/recfile"
)

// =============================================================================
// Index semantics and spans
// =============================================================================

func Test_Store_Renumbers_Records_When_Earlier_Record_Removed(t *testing.T) {
	t.Parallel()

	st := createStore(t)

	addAll(t, st, "AAA", "BB")
	require.NoError(t, st.RemoveAt(0))
	addAll(t, st, "CCCCC")

	assert.Equal(t, int64(2), st.Len())
	assert.Equal(t, int64(34), st.Span(), "[8+3 tombstone][8+2][8+5]")
	assert.Equal(t, int64(23), st.LiveSpan())

	got0, err := st.GetBytes(0)
	require.NoError(t, err)
	assert.Equal(t, "BB", string(got0))

	got1, err := st.GetBytes(1)
	require.NoError(t, err)
	assert.Equal(t, "CCCCC", string(got1))
}

func Test_Store_Returns_Same_Bytes_When_Record_Added_Then_Read(t *testing.T) {
	t.Parallel()

	st := createStore(t)

	records := []string{"x", "hello world", "\x00\x01\x02", "a longer record with some more bytes in it"}
	addAll(t, st, records...)

	assert.Equal(t, records, readAll(t, st))

	// Random order uses the restart path of the cursor.
	for _, i := range []int64{3, 0, 2, 2, 1} {
		got, err := st.GetBytes(i)
		require.NoError(t, err)
		assert.Equal(t, records[i], string(got), "GetBytes(%d)", i)
	}
}

func Test_Store_Keeps_Capacity_When_Record_Shrinks_Then_Grows(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "hello", "next")

	require.NoError(t, st.SetBytes(0, []byte("hi")))

	capacity, err := st.Capacity(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), capacity)
	assert.Equal(t, int64(8+5+8+4), st.Span())
	assert.Equal(t, int64(8+2+8+4), st.LiveSpan())

	got, err := st.GetBytes(0)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	// Growing back up to the original capacity is allowed.
	require.NoError(t, st.SetBytes(0, []byte("howdy")))
	assert.Equal(t, int64(8+5+8+4), st.LiveSpan())

	got, err = st.GetBytes(0)
	require.NoError(t, err)
	assert.Equal(t, "howdy", string(got))

	next, err := st.GetBytes(1)
	require.NoError(t, err)
	assert.Equal(t, "next", string(next), "neighbour must be untouched")
}

func Test_Store_Returns_ErrCapacityExceeded_When_Set_Larger_Than_Slot(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "abc")

	err := st.SetBytes(0, []byte("abcd"))
	require.ErrorIs(t, err, recfile.ErrCapacityExceeded)

	got, err := st.GetBytes(0)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, int64(11), st.LiveSpan())
}

func Test_Store_Skips_Tombstones_When_Reading_Sequentially(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "a", "b", "c", "d", "e", "f")

	require.NoError(t, st.RemoveAt(4)) // e
	require.NoError(t, st.RemoveAt(1)) // b
	require.NoError(t, st.RemoveAt(1)) // c

	assert.Equal(t, []string{"a", "d", "f"}, readAll(t, st))
	assert.Equal(t, int64(6*9), st.Span())
	assert.Equal(t, int64(3*9), st.LiveSpan())
}

func Test_Store_Removes_Last_Record_When_Only_One_Left(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "only")

	require.NoError(t, st.RemoveAt(0))

	assert.Equal(t, int64(0), st.Len())
	assert.Equal(t, int64(0), st.LiveSpan())
	assert.Equal(t, int64(12), st.Span())

	addAll(t, st, "again")

	got, err := st.GetBytes(0)
	require.NoError(t, err)
	assert.Equal(t, "again", string(got))
}

func Test_Store_Reports_Stats_When_Records_Mutated(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "AAA", "BB")
	require.NoError(t, st.RemoveAt(0))

	assert.Equal(t, recfile.Stats{
		Records:     1,
		Span:        21,
		LiveSpan:    10,
		Reclaimable: 11,
	}, st.Stats())

	require.NoError(t, st.Compact())

	assert.Equal(t, recfile.Stats{
		Records:     1,
		Span:        10,
		LiveSpan:    10,
		Compactions: 1,
	}, st.Stats())
}

// =============================================================================
// Persistence
// =============================================================================

func Test_Store_Persists_Records_When_Closed_And_Reopened(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "persist.db")

	st, err := recfile.Create(recfile.Options{Path: path})
	require.NoError(t, err)

	addAll(t, st, "one", "two", "three")
	require.NoError(t, st.RemoveAt(1))
	require.NoError(t, st.SetBytes(1, []byte("3")))
	require.NoError(t, st.Close())

	require.NoError(t, recfile.Validate(path))

	reopened, err := recfile.Open(recfile.Options{Path: path, Verify: true})
	require.NoError(t, err)

	defer func() { _ = reopened.Close() }()

	assert.Equal(t, int64(2), reopened.Len())
	assert.Equal(t, int64(8+3+8+3+8+5), reopened.Span())
	assert.Equal(t, int64(8+3+8+1), reopened.LiveSpan())
	assert.Equal(t, []string{"one", "3"}, readAll(t, reopened))
}

func Test_Store_Writes_Header_When_Synced(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "abc")

	require.NoError(t, st.Sync())

	raw := readRaw(t, st.Path())
	want := buildFile(11, 11, 1, rawSlot{capacity: 3, used: 3, payload: "abc"})
	assert.Equal(t, want, raw)
}

func Test_Open_Returns_ErrTruncatedHeader_When_File_Short(t *testing.T) {
	t.Parallel()

	path := writeRaw(t, make([]byte, headerSize-1))

	_, err := recfile.Open(recfile.Options{Path: path})
	require.ErrorIs(t, err, recfile.ErrTruncatedHeader)
}

func Test_Open_Returns_ErrCorrupt_When_Header_Impossible(t *testing.T) {
	t.Parallel()

	path := writeRaw(t, buildFile(-1, 0, 0))

	_, err := recfile.Open(recfile.Options{Path: path})
	require.ErrorIs(t, err, recfile.ErrCorrupt)
}

func Test_Open_Returns_FormatError_When_Verify_Finds_Bad_Slot(t *testing.T) {
	t.Parallel()

	path := writeRaw(t, buildFile(11, 11, 1, rawSlot{capacity: 3, used: 4, payload: "abc"}))

	// The header alone looks fine.
	st, err := recfile.Open(recfile.Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = recfile.Open(recfile.Options{Path: path, Verify: true})
	require.ErrorIs(t, err, recfile.ErrCorrupt)
	assert.Equal(t, recfile.CodeInconsistentSlotLength, recfile.CodeOf(err))
}

func Test_Store_Returns_ErrCorrupt_When_Slot_Crosses_Data_End(t *testing.T) {
	t.Parallel()

	// The header claims one record, the slot claims far more bytes than exist.
	path := writeRaw(t, buildFile(11, 11, 1, rawSlot{capacity: 3, used: 3, payload: "abc"}))

	raw := readRaw(t, path)
	raw[headerSize] = 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	st, err := recfile.Open(recfile.Options{Path: path})
	require.NoError(t, err)

	defer func() { _ = st.Close() }()

	_, err = st.GetBytes(0)
	require.ErrorIs(t, err, recfile.ErrCorrupt)
}

// =============================================================================
// Input validation
// =============================================================================

func Test_Store_Returns_ErrOutOfRange_When_Index_Invalid(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "a", "b")

	for _, index := range []int64{-1, 2, 100} {
		_, err := st.GetBytes(index)
		require.ErrorIs(t, err, recfile.ErrOutOfRange, "GetBytes(%d)", index)

		err = st.SetBytes(index, []byte("x"))
		require.ErrorIs(t, err, recfile.ErrOutOfRange, "SetBytes(%d)", index)

		err = st.RemoveAt(index)
		require.ErrorIs(t, err, recfile.ErrOutOfRange, "RemoveAt(%d)", index)

		_, err = st.Capacity(index)
		require.ErrorIs(t, err, recfile.ErrOutOfRange, "Capacity(%d)", index)
	}
}

func Test_Store_Returns_ErrInvalidInput_When_Record_Empty(t *testing.T) {
	t.Parallel()

	st := createStore(t)

	require.ErrorIs(t, st.AddBytes(nil), recfile.ErrInvalidInput)
	assert.Equal(t, int64(0), st.Len())
	assert.Equal(t, int64(0), st.Span())

	addAll(t, st, "a")
	require.ErrorIs(t, st.SetBytes(0, nil), recfile.ErrInvalidInput)
}

func Test_Store_Returns_ErrShortPayload_When_Encoder_Writes_Too_Little(t *testing.T) {
	t.Parallel()

	st := createStore(t)

	short := recfile.EncoderFunc(func(w io.Writer, _ uint32) error {
		_, err := w.Write([]byte("ab"))

		return err
	})

	err := st.Add(3, short)
	require.ErrorIs(t, err, recfile.ErrShortPayload)
	assert.Equal(t, int64(0), st.Len(), "failed Add must not append")
	assert.Equal(t, int64(0), st.Span())

	addAll(t, st, "xyz")

	err = st.Set(0, 3, short)
	require.ErrorIs(t, err, recfile.ErrShortPayload)

	got, err := st.GetBytes(0)
	require.NoError(t, err)
	assert.Len(t, got, 3, "failed Set keeps the old length")
}

func Test_Store_Returns_ErrPayloadOverflow_When_Encoder_Writes_Too_Much(t *testing.T) {
	t.Parallel()

	st := createStore(t)

	long := recfile.EncoderFunc(func(w io.Writer, _ uint32) error {
		_, err := w.Write([]byte("abcd"))

		return err
	})

	err := st.Add(3, long)
	require.ErrorIs(t, err, recfile.ErrPayloadOverflow)
	assert.Equal(t, int64(0), st.Len())
}

func Test_Store_Propagates_Encoder_Error(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	boom := errors.New("boom")

	err := st.Add(1, recfile.EncoderFunc(func(io.Writer, uint32) error { return boom }))
	require.ErrorIs(t, err, boom)
}

func Test_Store_Streams_Payload_When_Decoder_Used(t *testing.T) {
	t.Parallel()

	st := createStore(t)
	addAll(t, st, "streamed")

	var got []byte

	n, err := st.Get(0, recfile.DecoderFunc(func(r io.Reader, n uint32) error {
		data, readErr := io.ReadAll(r)
		got = data

		assert.Equal(t, uint32(len(data)), n)

		return readErr
	}))
	require.NoError(t, err)
	assert.Equal(t, uint32(8), n)
	assert.Equal(t, "streamed", string(got))
}

func Test_Store_Returns_ErrClosed_When_Used_After_Close(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "closed.db")

	st, err := recfile.Create(recfile.Options{Path: path})
	require.NoError(t, err)
	addAll(t, st, "a")
	require.NoError(t, st.Close())

	require.ErrorIs(t, st.Close(), recfile.ErrClosed)
	require.ErrorIs(t, st.AddBytes([]byte("b")), recfile.ErrClosed)
	require.ErrorIs(t, st.SetBytes(0, []byte("b")), recfile.ErrClosed)
	require.ErrorIs(t, st.RemoveAt(0), recfile.ErrClosed)
	require.ErrorIs(t, st.Compact(), recfile.ErrClosed)
	require.ErrorIs(t, st.Sync(), recfile.ErrClosed)

	_, err = st.GetBytes(0)
	require.ErrorIs(t, err, recfile.ErrClosed)
}

func Test_Create_Returns_ErrInvalidInput_When_Path_Empty(t *testing.T) {
	t.Parallel()

	_, err := recfile.Create(recfile.Options{})
	require.ErrorIs(t, err, recfile.ErrInvalidInput)

	_, err = recfile.Open(recfile.Options{})
	require.ErrorIs(t, err, recfile.ErrInvalidInput)
}
