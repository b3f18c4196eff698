package usn

import (
	"encoding/binary"
	"time"
	"unicode/utf16"
)

const (
	attrHidden    = 0x2
	attrSystem    = 0x4
	attrDirectory = 0x10

	v2HeaderLen = 60
	v3HeaderLen = 76
)

// Record is one decoded USN_RECORD_V2 or USN_RECORD_V3.
type Record struct {
	Major      uint16
	FRN        uint64
	ParentFRN  uint64
	Usn        int64
	TimeStamp  time.Time
	Reason     uint32
	Attributes uint32
	Name       string

	// Malformed is set when the record could not be decoded; only Major and
	// whatever ids were readable are meaningful then.
	Malformed bool
}

// IsDir reports whether the directory attribute is set.
func (r Record) IsDir() bool { return r.Attributes&attrDirectory != 0 }

// Hidden reports whether the hidden or system attribute is set.
func (r Record) Hidden() bool { return r.Attributes&(attrHidden|attrSystem) != 0 }

// ParseRecords decodes the packed records in data (the response without its
// cursor header) and appends them to dst. A record whose length field cannot
// be trusted ends parsing with one malformed entry, since the next record's
// position is unknown.
func ParseRecords(data []byte, dst []Record) []Record {
	for off := 0; off < len(data); {
		rest := data[off:]
		if len(rest) < 8 {
			return append(dst, Record{Malformed: true})
		}
		length := int(binary.LittleEndian.Uint32(rest[0:4]))
		if length == 0 {
			// zero padding at the end of a response
			return dst
		}
		if length < 8 || length > len(rest) {
			return append(dst, Record{Malformed: true})
		}
		dst = append(dst, parseRecord(rest[:length]))
		off += length
	}
	return dst
}

func parseRecord(b []byte) Record {
	le := binary.LittleEndian
	rec := Record{Major: le.Uint16(b[4:6])}

	var nameLen, nameOff int
	switch rec.Major {
	case 2:
		if len(b) < v2HeaderLen {
			rec.Malformed = true
			return rec
		}
		rec.FRN = le.Uint64(b[8:16])
		rec.ParentFRN = le.Uint64(b[16:24])
		rec.Usn = int64(le.Uint64(b[24:32]))
		rec.TimeStamp = FiletimeToTime(int64(le.Uint64(b[32:40])))
		rec.Reason = le.Uint32(b[40:44])
		rec.Attributes = le.Uint32(b[52:56])
		nameLen = int(le.Uint16(b[56:58]))
		nameOff = int(le.Uint16(b[58:60]))
	case 3:
		if len(b) < v3HeaderLen {
			rec.Malformed = true
			return rec
		}
		// 128-bit ids; NTFS only ever fills the low half.
		rec.FRN = le.Uint64(b[8:16])
		rec.ParentFRN = le.Uint64(b[24:32])
		if le.Uint64(b[16:24]) != 0 || le.Uint64(b[32:40]) != 0 {
			rec.Malformed = true
			return rec
		}
		rec.Usn = int64(le.Uint64(b[40:48]))
		rec.TimeStamp = FiletimeToTime(int64(le.Uint64(b[48:56])))
		rec.Reason = le.Uint32(b[56:60])
		rec.Attributes = le.Uint32(b[68:72])
		nameLen = int(le.Uint16(b[72:74]))
		nameOff = int(le.Uint16(b[74:76]))
	default:
		rec.Malformed = true
		return rec
	}

	if nameLen == 0 || nameLen%2 != 0 || nameOff+nameLen > len(b) {
		rec.Malformed = true
		return rec
	}
	name, ok := decodeUTF16(b[nameOff : nameOff+nameLen])
	if !ok {
		rec.Malformed = true
		return rec
	}
	rec.Name = name
	return rec
}

// decodeUTF16 decodes little endian UTF-16, rejecting unpaired surrogates.
func decodeUTF16(b []byte) (string, bool) {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] >= 0xE000 {
				return "", false
			}
			i++
		case u >= 0xDC00 && u < 0xE000:
			return "", false
		}
	}
	return string(utf16.Decode(units)), true
}

// filetimeEpochDelta is the number of 100ns intervals between 1601-01-01 and 1970-01-01.
const filetimeEpochDelta = 116444736000000000

// FiletimeToTime converts a FILETIME value to UTC. Non-positive values give the zero time.
func FiletimeToTime(ft int64) time.Time {
	if ft <= 0 {
		return time.Time{}
	}
	d := ft - filetimeEpochDelta
	return time.Unix(d/1e7, (d%1e7)*100).UTC()
}

// TimeToFiletime is the inverse of FiletimeToTime; the zero time maps to 0.
func TimeToFiletime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()*1e7 + int64(t.Nanosecond())/100 + filetimeEpochDelta
}
