// Package usntest provides an in-memory enumeration device and USN record
// encoders for tests.
package usntest

import (
	"context"
	"encoding/binary"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/usn"
)

const (
	AttrHidden    = 0x2
	AttrSystem    = 0x4
	AttrDirectory = 0x10
	AttrArchive   = 0x20
)

// Entry is the input of the record encoders.
type Entry struct {
	FRN        uint64
	ParentFRN  uint64
	Name       string
	Attributes uint32
	Modified   time.Time
	Usn        int64
}

// Dir returns a directory entry.
func Dir(frn, parent uint64, name string) Entry {
	return Entry{FRN: frn, ParentFRN: parent, Name: name, Attributes: AttrDirectory}
}

// File returns a regular file entry.
func File(frn, parent uint64, name string) Entry {
	return Entry{FRN: frn, ParentFRN: parent, Name: name, Attributes: AttrArchive}
}

func align8(n int) int { return (n + 7) &^ 7 }

func utf16Bytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}

// EncodeV2 encodes e as a USN_RECORD_V2.
func EncodeV2(e Entry) []byte {
	name := utf16Bytes(e.Name)
	const off = 60
	b := make([]byte, align8(off+len(name)))
	le := binary.LittleEndian
	le.PutUint32(b[0:], uint32(len(b)))
	le.PutUint16(b[4:], 2)
	le.PutUint16(b[6:], 0)
	le.PutUint64(b[8:], e.FRN)
	le.PutUint64(b[16:], e.ParentFRN)
	le.PutUint64(b[24:], uint64(e.Usn))
	le.PutUint64(b[32:], uint64(usn.TimeToFiletime(e.Modified)))
	le.PutUint32(b[52:], e.Attributes)
	le.PutUint16(b[56:], uint16(len(name)))
	le.PutUint16(b[58:], off)
	copy(b[off:], name)
	return b
}

// EncodeV3 encodes e as a USN_RECORD_V3 with zero high id halves.
func EncodeV3(e Entry) []byte {
	name := utf16Bytes(e.Name)
	const off = 76
	b := make([]byte, align8(off+len(name)))
	le := binary.LittleEndian
	le.PutUint32(b[0:], uint32(len(b)))
	le.PutUint16(b[4:], 3)
	le.PutUint64(b[8:], e.FRN)
	le.PutUint64(b[24:], e.ParentFRN)
	le.PutUint64(b[40:], uint64(e.Usn))
	le.PutUint64(b[48:], uint64(usn.TimeToFiletime(e.Modified)))
	le.PutUint32(b[68:], e.Attributes)
	le.PutUint16(b[72:], uint16(len(name)))
	le.PutUint16(b[74:], off)
	copy(b[off:], name)
	return b
}

// Response packs a cursor header and encoded records the way the device returns them.
func Response(next uint64, records ...[]byte) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, next)
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

// Device is an in-memory usn.Device. The cursor is the index of the next
// record to return, so responses never reorder records.
type Device struct {
	Journal usn.JournalData
	Root    uint64
	Records [][]byte

	// PageSize caps the records per response; 0 means as many as fit.
	PageSize int
	// QueryErr fails QueryJournal.
	QueryErr error
	// Errs fails the n-th EnumUSNData call (0-based) with the mapped error.
	Errs map[int]error

	mu       sync.Mutex
	requests []usn.EnumRequest
	bufSizes []int
	closed   bool
}

// NewDevice returns a device holding the encoded V2 form of entries.
func NewDevice(root uint64, entries ...Entry) *Device {
	d := &Device{
		Journal: usn.JournalData{JournalID: 1, NextUsn: 1 << 20},
		Root:    root,
	}
	for _, e := range entries {
		d.Records = append(d.Records, EncodeV2(e))
	}
	return d
}

func (d *Device) QueryJournal(ctx context.Context) (usn.JournalData, error) {
	if err := ctx.Err(); err != nil {
		return usn.JournalData{}, err
	}
	if d.QueryErr != nil {
		return usn.JournalData{}, d.QueryErr
	}
	return d.Journal, nil
}

func (d *Device) EnumUSNData(ctx context.Context, req usn.EnumRequest, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	call := len(d.requests)
	d.requests = append(d.requests, req)
	d.bufSizes = append(d.bufSizes, len(buf))
	d.mu.Unlock()

	if err, ok := d.Errs[call]; ok {
		return 0, err
	}

	idx := int(req.StartFRN)
	if idx >= len(d.Records) {
		return 0, common.ErrEndOfData
	}
	if len(buf) < 8+len(d.Records[idx]) {
		return 0, common.ErrBufferTooSmall
	}

	n := 8
	next := idx
	for next < len(d.Records) {
		if d.PageSize > 0 && next-idx >= d.PageSize {
			break
		}
		rec := d.Records[next]
		if n+len(rec) > len(buf) {
			break
		}
		copy(buf[n:], rec)
		n += len(rec)
		next++
	}
	binary.LittleEndian.PutUint64(buf[:8], uint64(next))
	return n, nil
}

func (d *Device) RootID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return d.Root, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Requests returns the enumeration requests seen so far.
func (d *Device) Requests() []usn.EnumRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]usn.EnumRequest(nil), d.requests...)
}

// BufferSizes returns the buffer length passed with each request.
func (d *Device) BufferSizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.bufSizes...)
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Provider is an in-memory usn.Provider keyed by volume name.
type Provider struct {
	Devices map[string]*Device
	// Caps overrides the capability of a volume; volumes with a device
	// default to BulkCapable, others to FallbackOnly.
	Caps     map[string]usn.Capability
	OpenErrs map[string]error
	Fixed    []string
}

func (p *Provider) Probe(_ context.Context, volume string) usn.Capability {
	if c, ok := p.Caps[volume]; ok {
		return c
	}
	if _, ok := p.Devices[volume]; ok {
		return usn.Bulk()
	}
	return usn.Fallback("no test device for %s", volume)
}

func (p *Provider) Open(_ context.Context, volume string) (usn.Device, error) {
	if err := p.OpenErrs[volume]; err != nil {
		return nil, common.NewVolumeError(volume, "open", err)
	}
	d, ok := p.Devices[volume]
	if !ok {
		return nil, common.NewVolumeError(volume, "open", common.ErrUnsupportedVolume)
	}
	return d, nil
}

func (p *Provider) FixedVolumes(context.Context) ([]string, error) {
	return append([]string(nil), p.Fixed...), nil
}
