package indexing

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Source produces record batches into out until it is exhausted or fails.
// Implementations must not close out and must stop sending once ctx is done.
type Source interface {
	Stream(ctx context.Context, out chan<- Batch) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, out chan<- Batch) error

// Stream calls f.
func (f SourceFunc) Stream(ctx context.Context, out chan<- Batch) error { return f(ctx, out) }

// Emit sends batch on out unless ctx is done first.
func Emit(ctx context.Context, out chan<- Batch, batch Batch) error {
	select {
	case out <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BuilderOptions tunes the source -> builder pipeline.
type BuilderOptions struct {
	// PipelineDepth is the number of batches buffered between source and builder.
	PipelineDepth int
}

// Builder populates one Store from one Source and freezes it.
type Builder struct {
	store *Store
	opts  BuilderOptions
	log   zerolog.Logger
}

// NewBuilder creates a builder owning store until Build returns.
func NewBuilder(store *Store, opts BuilderOptions, log zerolog.Logger) *Builder {
	if opts.PipelineDepth <= 0 {
		opts.PipelineDepth = 1
	}
	return &Builder{
		store: store,
		opts:  opts,
		log:   log.With().Str("component", "builder").Str("volume", store.Volume()).Logger(),
	}
}

// Build streams src into the store and freezes it on success. On failure the
// store is left unfrozen and must be discarded.
func (b *Builder) Build(ctx context.Context, src Source) (BuildStats, error) {
	var stats BuildStats
	if b.store.Frozen() {
		return stats, common.ErrStoreFrozen
	}

	start := time.Now()
	batches := make(chan Batch, b.opts.PipelineDepth)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		return src.Stream(gctx, batches)
	})

	g.Go(func() error {
		for batch := range batches {
			stats.Batches++
			for _, rec := range batch {
				stats.Received++
				if err := b.validate(rec); err != nil {
					stats.Malformed++
					b.log.Trace().Err(err).Uint64("id", rec.ID).Msg("Skipping record")
					continue
				}
				replaced, err := b.store.Put(rec)
				if err != nil {
					return err
				}
				if replaced {
					stats.Duplicates++
				}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		stats.Duration = time.Since(start)
		return stats, err
	}

	b.store.Freeze()
	stats.Inserted = int64(b.store.Len())
	stats.Duration = time.Since(start)

	b.log.Debug().
		Int64("records", stats.Inserted).
		Int64("duplicates", stats.Duplicates).
		Int64("malformed", stats.Malformed).
		Dur("duration", stats.Duration).
		Msg("Store frozen")

	return stats, nil
}

// validate performs shape checks only; hierarchy problems are left to the resolver.
func (b *Builder) validate(rec FileRecord) error {
	switch {
	case rec.Malformed:
		return fmt.Errorf("%w: undecodable source record", common.ErrMalformedRecord)
	case rec.ID == RootID:
		return fmt.Errorf("%w: reserved id", common.ErrMalformedRecord)
	case rec.ParentID == rec.ID:
		return fmt.Errorf("%w: self-referential parent", common.ErrMalformedRecord)
	case rec.Name == "", rec.Name == ".", rec.Name == "..":
		return fmt.Errorf("%w: invalid name %q", common.ErrMalformedRecord, rec.Name)
	case !utf8.ValidString(rec.Name):
		return fmt.Errorf("%w: name is not valid utf-8", common.ErrMalformedRecord)
	case strings.ContainsAny(rec.Name, "/\x00"), strings.Contains(rec.Name, b.store.layout.Separator):
		return fmt.Errorf("%w: name contains a separator", common.ErrMalformedRecord)
	}
	return nil
}
