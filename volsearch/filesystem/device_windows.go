//go:build windows

package filesystem

import (
	"io/fs"

	"golang.org/x/sys/windows"
)

// deviceID reports the serial number of the volume holding path. Mounted
// folders resolve to the volume mounted there.
func deviceID(path string, _ fs.FileInfo) (uint64, bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, false
	}
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, false
	}
	defer windows.CloseHandle(h)

	var fi windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &fi); err != nil {
		return 0, false
	}
	return uint64(fi.VolumeSerialNumber), true
}
