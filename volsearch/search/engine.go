// Package search answers filename queries against frozen index stores.
package search

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
)

// Kind restricts hits to files or folders.
type Kind int

const (
	KindAny Kind = iota
	KindFiles
	KindFolders
)

// Options filter and bound a query.
type Options struct {
	Kind Kind
	// Extensions keeps files whose extension is in the list ("pdf" or ".pdf").
	Extensions []string
	// ExcludeHidden drops records carrying the hidden or system attribute.
	ExcludeHidden bool
	// Limit caps the hits returned; 0 means unlimited.
	Limit int
}

// Hit is one matching record. Paths are resolved separately.
type Hit struct {
	Volume string
	ID     indexing.RecordID
	Name   string
	IsDir  bool
}

const cancelCheckEvery = 4096

// Engine runs queries. It holds no per-query state and is safe for concurrent use.
type Engine struct {
	opts Options
	log  zerolog.Logger
}

// NewEngine creates an engine whose Search uses opts.
func NewEngine(opts Options, log zerolog.Logger) *Engine {
	return &Engine{opts: opts, log: log.With().Str("component", "search").Logger()}
}

// Tokenize lowercases query and splits it on whitespace.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Search runs query with the engine's default options.
func (e *Engine) Search(ctx context.Context, query string, stores ...*indexing.Store) ([]Hit, error) {
	return e.SearchWith(ctx, query, e.opts, stores...)
}

// SearchWith returns the records whose lowercased name contains every token of
// query. Hits are ordered by store, then by ascending id, and cut at opts.Limit.
// An empty query matches nothing.
func (e *Engine) SearchWith(ctx context.Context, query string, opts Options, stores ...*indexing.Store) ([]Hit, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	for _, s := range stores {
		if !s.Frozen() {
			return nil, common.WrapError(common.ErrIndexNotFrozen, "search volume %s", s.Volume())
		}
	}

	var hits []Hit
	for _, s := range stores {
		var err error
		hits, err = e.searchStore(ctx, s, tokens, opts, hits)
		if err != nil {
			return nil, err
		}
		if opts.Limit > 0 && len(hits) >= opts.Limit {
			break
		}
	}

	e.log.Debug().
		Str("query", query).
		Int("stores", len(stores)).
		Int("hits", len(hits)).
		Msg("Search complete")
	return hits, nil
}

func (e *Engine) searchStore(ctx context.Context, s *indexing.Store, tokens []string, opts Options, hits []Hit) ([]Hit, error) {
	cands := candidates(s.Bitmaps(), tokens, opts)

	it := cands.Iterator()
	for n := 0; it.HasNext(); n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		slot := it.Next()
		if !matchesAll(s.LowerName(slot), tokens) {
			continue
		}
		rec := s.At(slot)
		hits = append(hits, Hit{Volume: s.Volume(), ID: rec.ID, Name: rec.Name, IsDir: rec.IsDir})
		if opts.Limit > 0 && len(hits) >= opts.Limit {
			break
		}
	}
	return hits, nil
}

// candidates narrows the slot set with trigram and filter bitmaps. The result
// may contain false positives; never false negatives.
func candidates(bm *indexing.NameBitmaps, tokens []string, opts Options) *roaring.Bitmap {
	var cands *roaring.Bitmap
	for _, tok := range tokens {
		c, ok := bm.Candidates(tok)
		if !ok {
			continue
		}
		if cands == nil {
			cands = c
		} else {
			cands.And(c)
		}
	}
	if cands == nil {
		cands = bm.All.Clone()
	}

	switch opts.Kind {
	case KindFiles:
		cands.AndNot(bm.Dirs)
	case KindFolders:
		cands.And(bm.Dirs)
	}
	if len(opts.Extensions) > 0 {
		cands.And(bm.OrExt(opts.Extensions...))
	}
	if opts.ExcludeHidden {
		cands.AndNot(bm.Hidden)
	}
	return cands
}

func matchesAll(name string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(name, tok) {
			return false
		}
	}
	return true
}
