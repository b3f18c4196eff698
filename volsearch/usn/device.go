// Package usn enumerates NTFS volumes through the change journal's bulk
// enumeration facility (FSCTL_ENUM_USN_DATA).
package usn

import (
	"context"
	"encoding/binary"
	"strings"
)

// JournalData mirrors USN_JOURNAL_DATA_V0.
type JournalData struct {
	JournalID       uint64
	FirstUsn        int64
	NextUsn         int64
	LowestValidUsn  int64
	MaxUsn          int64
	MaximumSize     uint64
	AllocationDelta uint64
}

// EnumRequest mirrors MFT_ENUM_DATA_V0. StartFRN is the opaque cursor returned
// by the previous call, zero for the first.
type EnumRequest struct {
	StartFRN uint64
	LowUsn   int64
	HighUsn  int64
}

// Device is the bulk enumeration primitive for one volume.
//
// EnumUSNData fills buf with an 8 byte little endian next-cursor followed by
// packed USN records and returns the number of bytes written. It reports
// common.ErrEndOfData once the cursor is past the last record and
// common.ErrBufferTooSmall when buf cannot hold a single record.
type Device interface {
	QueryJournal(ctx context.Context) (JournalData, error)
	EnumUSNData(ctx context.Context, req EnumRequest, buf []byte) (int, error)
	// RootID returns the file reference number of the volume's root directory.
	RootID(ctx context.Context) (uint64, error)
	Close() error
}

// Provider gives access to volumes: it decides the capability of a volume and
// opens its enumeration device.
type Provider interface {
	Probe(ctx context.Context, volume string) Capability
	Open(ctx context.Context, volume string) (Device, error)
	// FixedVolumes lists local fixed volumes eligible for indexing.
	FixedVolumes(ctx context.Context) ([]string, error)
}

// NextCursor reads the cursor header of an enumeration response.
func NextCursor(resp []byte) (uint64, bool) {
	if len(resp) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(resp[:8]), true
}

// NormalizeVolume turns "c", "c:", `C:\` or `\\.\C:` into "C:". It returns ""
// for anything that is not a drive letter.
func NormalizeVolume(volume string) string {
	v := strings.TrimPrefix(strings.TrimSpace(volume), `\\.\`)
	v = strings.TrimRight(v, `\/`)
	v = strings.TrimSuffix(v, ":")
	if len(v) != 1 {
		return ""
	}
	c := v[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return ""
	}
	return string(c) + ":"
}

// RootPath returns the root directory of a normalized volume, e.g. `C:\`.
func RootPath(volume string) string {
	return volume + `\`
}
