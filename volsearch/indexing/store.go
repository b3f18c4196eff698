package indexing

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
)

// Store is the per-volume index. It is written by exactly one builder, frozen
// once, and read without locks afterwards.
type Store struct {
	layout Layout
	frozen atomic.Bool

	// build phase
	pending map[RecordID]FileRecord

	// frozen phase; slot order is ascending id order
	records []FileRecord
	lower   []string
	index   slotIndex
	bitmaps *NameBitmaps
}

// NewStore creates an empty store for the given layout.
func NewStore(layout Layout) *Store {
	if layout.Separator == "" {
		layout.Separator = `\`
	}
	return &Store{
		layout:  layout,
		pending: make(map[RecordID]FileRecord),
	}
}

// Layout returns how paths are formed for this store.
func (s *Store) Layout() Layout { return s.layout }

// Volume returns the volume name.
func (s *Store) Volume() string { return s.layout.Volume }

// Put inserts rec, replacing any record with the same id (last write wins).
func (s *Store) Put(rec FileRecord) (replaced bool, err error) {
	if s.frozen.Load() {
		return false, common.ErrStoreFrozen
	}
	_, replaced = s.pending[rec.ID]
	s.pending[rec.ID] = rec
	return replaced, nil
}

// PendingLen is the number of unique records inserted so far.
func (s *Store) PendingLen() int { return len(s.pending) }

// Freeze ends the build phase: records are laid out in id order and the name
// bitmaps are computed. Freezing twice is a no-op.
func (s *Store) Freeze() {
	if s.frozen.Load() {
		return
	}

	ids := make([]RecordID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	s.records = make([]FileRecord, len(ids))
	s.lower = make([]string, len(ids))
	s.bitmaps = NewNameBitmaps()

	for i, id := range ids {
		rec := s.pending[id]
		slot := uint32(i)
		lower := strings.ToLower(rec.Name)
		s.records[i] = rec
		s.lower[i] = lower
		s.bitmaps.Add(slot, lower, rec)
	}
	s.bitmaps.Optimize()
	s.index = newSlotIndex(ids)
	s.pending = nil

	s.frozen.Store(true)
}

// Frozen reports whether the build phase has completed.
func (s *Store) Frozen() bool { return s.frozen.Load() }

// Len is the number of records in a frozen store; 0 before freezing.
func (s *Store) Len() int {
	if !s.Frozen() {
		return 0
	}
	return len(s.records)
}

// Lookup returns the record for id. It always misses on an unfrozen store.
func (s *Store) Lookup(id RecordID) (FileRecord, bool) {
	if !s.Frozen() {
		return FileRecord{}, false
	}
	slot, ok := s.index.find(id)
	if !ok {
		return FileRecord{}, false
	}
	return s.records[slot], true
}

// At returns the record in slot. The store must be frozen.
func (s *Store) At(slot uint32) FileRecord { return s.records[slot] }

// LowerName returns the lowercased name in slot. The store must be frozen.
func (s *Store) LowerName(slot uint32) string { return s.lower[slot] }

// Bitmaps returns the search accelerators; nil before freezing.
func (s *Store) Bitmaps() *NameBitmaps {
	if !s.Frozen() {
		return nil
	}
	return s.bitmaps
}

// Records iterates over all records in id order until fn returns false.
func (s *Store) Records(fn func(FileRecord) bool) {
	if !s.Frozen() {
		return
	}
	for _, rec := range s.records {
		if !fn(rec) {
			return
		}
	}
}
