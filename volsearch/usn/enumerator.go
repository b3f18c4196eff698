package usn

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"

	"github.com/rs/zerolog"
)

// Options tunes the cursor loop.
type Options struct {
	BufferSize    int
	MaxBufferSize int
	BatchSize     int
}

// EnumStats counts what one enumeration did.
type EnumStats struct {
	Calls     int64
	Records   int64
	Malformed int64
	Grows     int64
}

// Enumerator drives the bulk enumeration protocol for one volume and emits
// normalized record batches. It implements indexing.Source.
type Enumerator struct {
	volume string
	dev    Device
	opts   Options
	log    zerolog.Logger

	calls     atomic.Int64
	records   atomic.Int64
	malformed atomic.Int64
	grows     atomic.Int64
}

// NewEnumerator creates an enumerator over dev. The caller keeps ownership of dev.
func NewEnumerator(volume string, dev Device, opts Options, log zerolog.Logger) *Enumerator {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64 << 10
	}
	if opts.MaxBufferSize <= 0 {
		opts.MaxBufferSize = 16 << 20
	}
	if opts.MaxBufferSize < opts.BufferSize {
		opts.MaxBufferSize = opts.BufferSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4096
	}
	return &Enumerator{
		volume: volume,
		dev:    dev,
		opts:   opts,
		log:    log.With().Str("component", "enumerator").Str("volume", volume).Logger(),
	}
}

// Stats returns the counters of the last Stream call.
func (e *Enumerator) Stats() EnumStats {
	return EnumStats{
		Calls:     e.calls.Load(),
		Records:   e.records.Load(),
		Malformed: e.malformed.Load(),
		Grows:     e.grows.Load(),
	}
}

// Stream enumerates every record of the volume into out. Access denied is
// returned on the first failing call and ends the enumeration; any other
// device failure is returned as a *common.VolumeError.
func (e *Enumerator) Stream(ctx context.Context, out chan<- indexing.Batch) error {
	e.calls.Store(0)
	e.records.Store(0)
	e.malformed.Store(0)
	e.grows.Store(0)

	journal, err := e.dev.QueryJournal(ctx)
	if err != nil {
		return e.fail("query journal", err)
	}
	rootFRN, err := e.dev.RootID(ctx)
	if err != nil {
		return e.fail("root id", err)
	}

	e.log.Debug().
		Uint64("journal", journal.JournalID).
		Int64("next_usn", journal.NextUsn).
		Uint64("root_frn", rootFRN).
		Msg("Starting enumeration")

	buf := make([]byte, e.opts.BufferSize)
	batch := make(indexing.Batch, 0, e.opts.BatchSize)
	var parsed []Record
	cursor := uint64(0)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := EnumRequest{StartFRN: cursor, LowUsn: 0, HighUsn: journal.NextUsn}
		e.calls.Add(1)
		n, err := e.dev.EnumUSNData(ctx, req, buf)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrEndOfData):
			return e.flush(ctx, out, batch)
		case errors.Is(err, common.ErrBufferTooSmall):
			if len(buf) >= e.opts.MaxBufferSize {
				return e.fail("enumerate", fmt.Errorf("%w: record does not fit in %d bytes", common.ErrTransientIO, len(buf)))
			}
			size := min(len(buf)*2, e.opts.MaxBufferSize)
			e.grows.Add(1)
			e.log.Debug().Int("size", size).Uint64("cursor", cursor).Msg("Growing enumeration buffer")
			buf = make([]byte, size)
			continue
		default:
			return e.fail("enumerate", err)
		}

		if n <= 8 {
			return e.flush(ctx, out, batch)
		}
		next, _ := NextCursor(buf[:n])

		parsed = ParseRecords(buf[8:n], parsed[:0])
		for _, rec := range parsed {
			if !rec.Malformed && rec.FRN == rootFRN {
				continue
			}
			batch = append(batch, e.normalize(rec, rootFRN))
			if len(batch) >= e.opts.BatchSize {
				if err := indexing.Emit(ctx, out, batch); err != nil {
					return err
				}
				batch = make(indexing.Batch, 0, e.opts.BatchSize)
			}
		}

		if next == cursor {
			return e.fail("enumerate", fmt.Errorf("%w: cursor did not advance past %d", common.ErrTransientIO, cursor))
		}
		cursor = next
	}
}

func (e *Enumerator) normalize(rec Record, rootFRN uint64) indexing.FileRecord {
	e.records.Add(1)
	if rec.Malformed {
		e.malformed.Add(1)
		return indexing.FileRecord{ID: rec.FRN, ParentID: rec.ParentFRN, Size: indexing.UnknownSize, Malformed: true}
	}
	parent := rec.ParentFRN
	if parent == rootFRN {
		parent = indexing.RootID
	}
	return indexing.FileRecord{
		ID:       rec.FRN,
		ParentID: parent,
		Name:     rec.Name,
		IsDir:    rec.IsDir(),
		Hidden:   rec.Hidden(),
		Size:     indexing.UnknownSize,
		Modified: rec.TimeStamp,
	}
}

func (e *Enumerator) flush(ctx context.Context, out chan<- indexing.Batch, batch indexing.Batch) error {
	e.log.Debug().
		Int64("calls", e.calls.Load()).
		Int64("records", e.records.Load()).
		Msg("Enumeration complete")
	if len(batch) == 0 {
		return nil
	}
	return indexing.Emit(ctx, out, batch)
}

func (e *Enumerator) fail(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return common.NewVolumeError(e.volume, op, err)
}
