//go:build !unix && !windows

package filesystem

import "io/fs"

func deviceID(string, fs.FileInfo) (uint64, bool) {
	return 0, false
}
