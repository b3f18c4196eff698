//go:build unix

package filesystem

import (
	"io/fs"
	"syscall"
)

// deviceID reports the device number of the filesystem holding info.
func deviceID(_ string, info fs.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true
}
