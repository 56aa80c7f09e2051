// Validator tests.
//
// Each case hand-builds a file with exactly one structural defect and checks
// that Validate reports the matching code.
//
// Oracle: Expected Code per crafted file
// Technique: Table-driven byte layouts

package recfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recfile/pkg/recfile"
)

func Test_Validate_Reports_Code_When_File_Defective(t *testing.T) {
	t.Parallel()

	abc := rawSlot{capacity: 3, used: 3, payload: "abc"}

	testCases := []struct {
		name string
		data []byte
		want recfile.Code
	}{
		{
			name: "Empty",
			data: buildFile(0, 0, 0),
			want: recfile.OK,
		},
		{
			name: "OneRecord",
			data: buildFile(11, 11, 1, abc),
			want: recfile.OK,
		},
		{
			name: "TombstoneAndSlack",
			data: buildFile(24, 9, 1,
				rawSlot{capacity: 3, used: 0},
				rawSlot{capacity: 5, used: 1, payload: "x"},
			),
			want: recfile.OK,
		},
		{
			name: "OnlyTombstones",
			data: buildFile(11, 0, 0, rawSlot{capacity: 3, used: 0}),
			want: recfile.OK,
		},
		{
			name: "ShortHeader",
			data: make([]byte, 10),
			want: recfile.CodeMalformedHeader,
		},
		{
			name: "SpanTooLarge",
			data: buildFile(recfile.MaxSpan+1, 0, 0),
			want: recfile.CodeSpanTooLarge,
		},
		{
			name: "SpanNegative",
			data: buildFile(-8, 0, 0),
			want: recfile.CodeSpanNegative,
		},
		{
			name: "LiveSpanTooLarge",
			data: buildFile(0, recfile.MaxSpan+1, 0),
			want: recfile.CodeLiveSpanTooLarge,
		},
		{
			name: "LiveSpanNegative",
			data: buildFile(0, -1, 0),
			want: recfile.CodeLiveSpanNegative,
		},
		{
			name: "CountNegative",
			data: buildFile(0, 0, -3),
			want: recfile.CodeCountNegative,
		},
		{
			name: "CountWithoutSpan",
			data: buildFile(0, 0, 1),
			want: recfile.CodeInconsistentSpan,
		},
		{
			name: "LiveSpanWithoutCount",
			data: buildFile(11, 11, 0, abc),
			want: recfile.CodeInconsistentLiveSpan,
		},
		{
			name: "SlotHeaderTruncated",
			data: buildFile(11, 11, 1, abc)[:headerSize+5],
			want: recfile.CodeMalformedSlotHeader,
		},
		{
			name: "PayloadTruncated",
			data: buildFile(11, 11, 1, abc)[:headerSize+slotHeaderSize+1],
			want: recfile.CodeInconsistentSpan,
		},
		{
			name: "UsedExceedsCapacity",
			data: buildFile(11, 11, 1, rawSlot{capacity: 3, used: 4, payload: "abc"}),
			want: recfile.CodeInconsistentSlotLength,
		},
		{
			name: "SlotCrossesSpan",
			data: buildFile(10, 10, 1, abc),
			want: recfile.CodeInconsistentSpan,
		},
		{
			name: "SpanEndsInsideSlotHeader",
			data: buildFile(15, 11, 1, abc, rawSlot{capacity: 0}),
			want: recfile.CodeInconsistentSpan,
		},
		{
			name: "MoreLiveSlotsThanCount",
			data: buildFile(22, 11, 1, abc, abc),
			want: recfile.CodeInconsistentCount,
		},
		{
			name: "FewerLiveSlotsThanCount",
			data: buildFile(22, 22, 2, abc, rawSlot{capacity: 3, used: 0}),
			want: recfile.CodeInconsistentCount,
		},
		{
			name: "LiveSpanDisagreesWithSlots",
			data: buildFile(11, 10, 1, abc),
			want: recfile.CodeInconsistentLiveSpan,
		},
		{
			name: "NoRecordsSpanBeyondFile",
			data: buildFile(100, 0, 0),
			want: recfile.CodeMalformedSlotHeader,
		},
		{
			name: "NoRecordsSpanBeyondLastTombstone",
			data: buildFile(50, 0, 0, rawSlot{capacity: 3, used: 0}),
			want: recfile.CodeMalformedSlotHeader,
		},
		{
			name: "NoRecordsTombstoneCutShort",
			data: buildFile(30, 0, 0, rawSlot{capacity: 3, used: 0})[:headerSize+slotHeaderSize+1],
			want: recfile.CodeInconsistentSpan,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeRaw(t, tc.data)

			err := recfile.Validate(path)
			assert.Equal(t, tc.want, recfile.CodeOf(err), "err = %v", err)

			if tc.want == recfile.OK {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, recfile.ErrCorrupt)

			var fe *recfile.FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.want, fe.Code)
		})
	}
}

func Test_Validate_Returns_CodeOpen_When_File_Missing(t *testing.T) {
	t.Parallel()

	err := recfile.Validate(filepath.Join(t.TempDir(), "missing.db"))

	assert.Equal(t, recfile.CodeOpen, recfile.CodeOf(err))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, errors.Is(err, recfile.ErrCorrupt), "open failure is not corruption")
}

func Test_Validate_Succeeds_Before_And_After_Compact(t *testing.T) {
	t.Parallel()

	st := createStore(t)

	addAll(t, st, "alpha", "beta", "gamma", "delta")
	require.NoError(t, st.RemoveAt(1))
	require.NoError(t, st.SetBytes(2, []byte("d")))
	require.NoError(t, st.Sync())

	require.NoError(t, recfile.Validate(st.Path()))

	require.NoError(t, st.Compact())
	require.NoError(t, recfile.Validate(st.Path()))
}

func Test_FormatError_Reports_Offset_Of_Bad_Slot(t *testing.T) {
	t.Parallel()

	abc := rawSlot{capacity: 3, used: 3, payload: "abc"}
	path := writeRaw(t, buildFile(22, 22, 2, abc, rawSlot{capacity: 3, used: 9}))

	err := recfile.Validate(path)

	var fe *recfile.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, recfile.CodeInconsistentSlotLength, fe.Code)
	assert.Equal(t, int64(headerSize+slotHeaderSize+3), fe.Offset)
	assert.Contains(t, fe.Error(), "inconsistent slot length")
}

func Test_Validate_Scans_Data_Region_When_Count_Is_Zero(t *testing.T) {
	t.Parallel()

	path := writeRaw(t, buildFile(100, 0, 0))

	err := recfile.Validate(path)

	var fe *recfile.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, recfile.CodeMalformedSlotHeader, fe.Code)
	assert.Equal(t, int64(headerSize), fe.Offset)

	// The header alone is plausible, so only a verifying open notices.
	st, err := recfile.Open(recfile.Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Len())
	require.NoError(t, st.Close())

	_, err = recfile.Open(recfile.Options{Path: path, Verify: true})
	require.ErrorIs(t, err, recfile.ErrCorrupt)
	assert.Equal(t, recfile.CodeMalformedSlotHeader, recfile.CodeOf(err))
}

func Test_Code_String_Names_Every_Code(t *testing.T) {
	t.Parallel()

	seen := map[string]recfile.Code{}

	for c := recfile.OK; c <= recfile.CodeInconsistentCount; c++ {
		s := c.String()
		assert.NotContains(t, s, "unknown", "code %d", int(c))

		prev, dup := seen[s]
		assert.False(t, dup, "codes %d and %d share %q", int(prev), int(c), s)

		seen[s] = c
	}

	assert.Equal(t, "unknown code 99", recfile.Code(99).String())
}
