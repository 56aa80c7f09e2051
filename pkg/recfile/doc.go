// Package recfile provides a single-file embedded record store.
//
// A record file holds a sequence of variable-length byte records. Records
// are addressed by their logical index (0..Len()-1) and support random-access
// read, in-place update, soft delete, append, and explicit compaction.
//
// # Basic Usage
//
//	st, err := recfile.Create(recfile.Options{Path: "/tmp/records.db"})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	// Append
//	err = st.AddBytes([]byte("hello"))
//
//	// Read
//	data, err := st.GetBytes(0)
//
//	// Update in place (never grows past the record's original size)
//	err = st.SetBytes(0, []byte("hi"))
//
//	// Soft delete, then reclaim the space
//	err = st.RemoveAt(0)
//	err = st.Compact()
//
// # File Format
//
// The file starts with a 24-byte header of three int64 counters in native
// byte order: total span, live span, record count. The data region follows,
// made of slots: an 8-byte slot header (uint32 capacity, uint32 used length)
// and capacity payload bytes. A slot with used length 0 is a tombstone.
//
// The header counters live in memory while the store is open and are written
// back by [Store.Close], [Store.Sync] and [Store.Compact].
//
// # Concurrency
//
// A [Store] is not safe for concurrent use and recfile performs no file
// locking. Exactly one goroutine may use a Store at a time, and no other
// process may open the same file while it is in use.
//
// # Error Handling
//
// Corruption ([ErrCorrupt], [ErrTruncatedHeader]): the file does not match
// its header. Use [Validate] for a precise diagnosis.
//
// Recoverable errors ([ErrCapacityExceeded], [ErrCompact]): nothing was
// changed, the store stays usable.
//
// Programming errors ([ErrOutOfRange], [ErrInvalidInput], [ErrClosed]).
package recfile
