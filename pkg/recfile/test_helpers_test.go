// test_helpers_test.go - Shared helpers for recfile tests.

package recfile_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recfile/pkg/recfile"
)

// =============================================================================
// Layout constants (must match format.go)
// =============================================================================

const (
	headerSize     = 24
	slotHeaderSize = 8
)

// =============================================================================
// Store helpers
// =============================================================================

// createStore creates an empty store in a fresh temp dir.
func createStore(tb testing.TB) *recfile.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "records.db")

	st, err := recfile.Create(recfile.Options{Path: path})
	require.NoError(tb, err, "Create")

	tb.Cleanup(func() {
		_ = st.Close()
	})

	return st
}

// addAll appends every record or fails the test.
func addAll(tb testing.TB, st *recfile.Store, records ...string) {
	tb.Helper()

	for _, r := range records {
		require.NoError(tb, st.AddBytes([]byte(r)), "AddBytes(%q)", r)
	}
}

// readAll returns every record of st as strings.
func readAll(tb testing.TB, st *recfile.Store) []string {
	tb.Helper()

	out := make([]string, 0, st.Len())

	for data, err := range st.All() {
		require.NoError(tb, err, "All")

		out = append(out, string(data))
	}

	return out
}

// =============================================================================
// Raw file builders
// =============================================================================

type rawSlot struct {
	capacity uint32
	used     uint32
	payload  string
}

// buildFile encodes a header and slots the way recfile lays them out.
// Payloads shorter than capacity are padded with zeros.
func buildFile(totalSpan, liveSpan, count int64, slots ...rawSlot) []byte {
	buf := make([]byte, headerSize)
	binary.NativeEndian.PutUint64(buf[0:], uint64(totalSpan))
	binary.NativeEndian.PutUint64(buf[8:], uint64(liveSpan))
	binary.NativeEndian.PutUint64(buf[16:], uint64(count))

	for _, s := range slots {
		var sh [slotHeaderSize]byte
		binary.NativeEndian.PutUint32(sh[0:], s.capacity)
		binary.NativeEndian.PutUint32(sh[4:], s.used)

		payload := make([]byte, s.capacity)
		copy(payload, s.payload)

		buf = append(buf, sh[:]...)
		buf = append(buf, payload...)
	}

	return buf
}

// writeRaw writes data to a fresh file and returns its path.
func writeRaw(tb testing.TB, data []byte) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "raw.db")

	err := os.WriteFile(path, data, 0o600)
	require.NoError(tb, err, "write raw file")

	return path
}

// readRaw returns the bytes of the file at path.
func readRaw(tb testing.TB, path string) []byte {
	tb.Helper()

	data, err := os.ReadFile(path)
	require.NoError(tb, err, "read raw file")

	return data
}
