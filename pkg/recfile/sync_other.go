//go:build !linux

package recfile

import "github.com/calvinalkan/recfile/pkg/fs"

// syncData falls back to a full sync where fdatasync is unavailable.
// On darwin [os.File.Sync] issues F_FULLFSYNC.
func syncData(f fs.File) error {
	return f.Sync()
}
