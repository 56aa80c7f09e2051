package recfile

import (
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/recfile/pkg/fs"
)

// syncData flushes file data and the metadata needed to read it back.
func syncData(f fs.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
