//go:build windows

package usn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"

	"golang.org/x/sys/windows"
)

const (
	fsctlQueryUsnJournal = 0x000900F4
	fsctlEnumUsnData     = 0x000900B3
)

// Win32 codes the enumeration protocol cares about.
const (
	errInvalidFunction         = windows.Errno(1)
	errAccessDenied            = windows.Errno(5)
	errHandleEOF               = windows.Errno(38)
	errNotSupported            = windows.Errno(50)
	errInvalidParameter        = windows.Errno(87)
	errInsufficientBuffer      = windows.Errno(122)
	errMoreData                = windows.Errno(234)
	errJournalDeleteInProgress = windows.Errno(1178)
	errJournalNotActive        = windows.Errno(1179)
	errPrivilegeNotHeld        = windows.Errno(1314)
)

// mapError translates a Win32 failure onto the error taxonomy.
func mapError(err error) error {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case errHandleEOF:
		return common.ErrEndOfData
	case errInsufficientBuffer, errMoreData:
		return common.ErrBufferTooSmall
	case errAccessDenied, errPrivilegeNotHeld:
		return fmt.Errorf("%w: %w", common.ErrAccessDenied, err)
	case errInvalidFunction, errNotSupported, errInvalidParameter, errJournalNotActive, errJournalDeleteInProgress:
		return fmt.Errorf("%w: %w", common.ErrUnsupportedVolume, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrTransientIO, err)
	}
}

type winDevice struct {
	volume string
	h      windows.Handle
}

func openDevice(ctx context.Context, volume string) (Device, error) {
	v := NormalizeVolume(volume)
	if v == "" {
		return nil, common.NewVolumeError(volume, "open", common.ErrUnsupportedVolume)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := windows.UTF16PtrFromString(`\\.\` + v)
	if err != nil {
		return nil, common.NewVolumeError(v, "open", err)
	}
	h, err := windows.CreateFile(path,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0)
	if err != nil {
		return nil, common.NewVolumeError(v, "open", mapError(err))
	}
	return &winDevice{volume: v, h: h}, nil
}

func (d *winDevice) QueryJournal(ctx context.Context) (JournalData, error) {
	var jd JournalData
	if err := ctx.Err(); err != nil {
		return jd, err
	}
	var n uint32
	err := windows.DeviceIoControl(d.h, fsctlQueryUsnJournal,
		nil, 0,
		(*byte)(unsafe.Pointer(&jd)), uint32(unsafe.Sizeof(jd)),
		&n, nil)
	if err != nil {
		return jd, mapError(err)
	}
	return jd, nil
}

func (d *winDevice) EnumUSNData(ctx context.Context, req EnumRequest, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, common.ErrBufferTooSmall
	}
	var n uint32
	err := windows.DeviceIoControl(d.h, fsctlEnumUsnData,
		(*byte)(unsafe.Pointer(&req)), uint32(unsafe.Sizeof(req)),
		&buf[0], uint32(len(buf)),
		&n, nil)
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

func (d *winDevice) RootID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := windows.UTF16PtrFromString(RootPath(d.volume))
	if err != nil {
		return 0, err
	}
	h, err := windows.CreateFile(path,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0)
	if err != nil {
		return 0, mapError(err)
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return 0, mapError(err)
	}
	return uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow), nil
}

func (d *winDevice) Close() error {
	return windows.CloseHandle(d.h)
}

func probe(ctx context.Context, volume string) Capability {
	v := NormalizeVolume(volume)
	if v == "" {
		return Fallback("%q is not a drive letter", volume)
	}
	if err := ctx.Err(); err != nil {
		return Fallback("probe canceled: %v", err)
	}
	root, err := windows.UTF16PtrFromString(RootPath(v))
	if err != nil {
		return Fallback("invalid volume %q", volume)
	}
	if t := windows.GetDriveType(root); t != windows.DRIVE_FIXED {
		return Exclude("drive type %d is not fixed", t)
	}

	var fsName [windows.MAX_PATH + 1]uint16
	err = windows.GetVolumeInformation(root, nil, 0, nil, nil, nil, &fsName[0], uint32(len(fsName)))
	if err != nil {
		return Fallback("volume information: %v", err)
	}
	if name := windows.UTF16ToString(fsName[:]); !strings.EqualFold(name, "NTFS") {
		return Fallback("filesystem is %s", name)
	}
	return Bulk()
}

func fixedVolumes(ctx context.Context) ([]string, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, err
	}
	var volumes []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := string(rune('A'+i)) + ":"
		root, err := windows.UTF16PtrFromString(RootPath(v))
		if err != nil {
			continue
		}
		if windows.GetDriveType(root) == windows.DRIVE_FIXED {
			volumes = append(volumes, v)
		}
	}
	return volumes, nil
}
