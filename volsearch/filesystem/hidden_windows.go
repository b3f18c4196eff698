//go:build windows

package filesystem

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/windows"
)

func isHidden(_ string, info fs.FileInfo) bool {
	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return false
	}
	return data.FileAttributes&(windows.FILE_ATTRIBUTE_HIDDEN|windows.FILE_ATTRIBUTE_SYSTEM) != 0
}
