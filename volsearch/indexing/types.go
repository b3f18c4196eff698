package indexing

import (
	"time"
)

// RecordID is a volume-scoped reference number. For NTFS volumes it is the file
// reference number including its sequence bits; for fallback traversals it is
// synthesized and only meaningful within that traversal. Ids may be reused after
// deletion, so they must never be persisted across sessions.
type RecordID = uint64

// RootID is the parent sentinel meaning "directly under the volume root".
const RootID RecordID = 0

// UnknownSize marks records whose source did not report a size.
const UnknownSize int64 = -1

// FileRecord is the normalized representation of one filesystem entry.
type FileRecord struct {
	ID       RecordID
	ParentID RecordID
	Name     string // own name component, never a path
	IsDir    bool
	Hidden   bool
	Size     int64     // UnknownSize when not available
	Modified time.Time // zero when not available

	// Malformed is set by sources that could not decode the raw record; the
	// builder skips and counts such records.
	Malformed bool
}

// Batch is a group of records handed from a source to the builder.
type Batch []FileRecord

// SourceKind tells which acquisition strategy produced a store.
type SourceKind string

const (
	SourceBulk     SourceKind = "bulk"
	SourceFallback SourceKind = "fallback"
)

// Layout describes how paths are formed for the records of one store.
type Layout struct {
	Volume    string // e.g. "C:" or a fallback root
	Root      string // path prefix of the volume root, e.g. `C:\`
	Separator string // component separator, e.g. `\`
	Source    SourceKind
}

// BuildStats summarises one build.
type BuildStats struct {
	Received   int64
	Inserted   int64
	Duplicates int64
	Malformed  int64
	Batches    int64
	Duration   time.Duration
}
