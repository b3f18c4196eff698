package trees

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"
)

const (
	// TruncationMarker prefixes paths whose walk hit the depth cap.
	TruncationMarker = "…"
	// OrphanMarker prefixes paths whose ancestor chain is broken.
	OrphanMarker = "?"

	DefaultMaxDepth   = 4096
	DefaultCacheLimit = 1 << 16
)

// Status tells whether a resolution reached the volume root.
type Status int

const (
	StatusComplete Status = iota
	StatusTruncated
	StatusOrphaned
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusTruncated:
		return "truncated"
	case StatusOrphaned:
		return "orphaned"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Resolution is the full path of one record. Truncated and orphaned paths are
// partial and carry their marker in place of the missing prefix.
type Resolution struct {
	Path   string
	Status Status
}

// ResolverOptions bounds the resolver.
type ResolverOptions struct {
	MaxDepth int
	// CacheLimit caps cached directory paths; negative disables the cache.
	CacheLimit int
}

// ResolverStats reports cache effectiveness.
type ResolverStats struct {
	CacheHits   int64
	CacheMisses int64
	Cached      int
}

// Resolver rebuilds full paths on demand by walking parent links of a frozen
// store. Fully resolved directory paths are cached so siblings share the walk.
// It is safe for concurrent use.
type Resolver struct {
	store  *indexing.Store
	layout indexing.Layout
	opts   ResolverOptions

	mu    sync.RWMutex
	cache map[indexing.RecordID]string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResolver creates a resolver over store.
func NewResolver(store *indexing.Store, opts ResolverOptions) *Resolver {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.CacheLimit == 0 {
		opts.CacheLimit = DefaultCacheLimit
	}
	return &Resolver{
		store:  store,
		layout: store.Layout(),
		opts:   opts,
		cache:  make(map[indexing.RecordID]string),
	}
}

// Resolve returns the full path of id.
func (r *Resolver) Resolve(id indexing.RecordID) (Resolution, error) {
	if !r.store.Frozen() {
		return Resolution{}, common.ErrIndexNotFrozen
	}
	rec, ok := r.store.Lookup(id)
	if !ok {
		return Resolution{}, fmt.Errorf("resolve %d: %w", id, common.ErrRecordNotFound)
	}
	if rec.IsDir {
		if p, ok := r.cached(id); ok {
			return Resolution{Path: p, Status: StatusComplete}, nil
		}
	}

	// names[0] is the record itself; names[k] belongs to chain[k-1].
	names := []string{rec.Name}
	var chain []indexing.RecordID
	cur := rec.ParentID

	for {
		if cur == indexing.RootID {
			return r.complete(id, rec.IsDir, r.layout.Root, names, chain), nil
		}
		if prefix, ok := r.cached(cur); ok {
			return r.complete(id, rec.IsDir, prefix+r.layout.Separator, names, chain), nil
		}
		if len(names) >= r.opts.MaxDepth {
			return r.partial(TruncationMarker, StatusTruncated, names), nil
		}
		parent, ok := r.store.Lookup(cur)
		if !ok {
			return r.partial(OrphanMarker, StatusOrphaned, names), nil
		}
		names = append(names, parent.Name)
		chain = append(chain, cur)
		cur = parent.ParentID
	}
}

// complete joins names under base and caches every directory on the way.
func (r *Resolver) complete(id indexing.RecordID, isDir bool, base string, names []string, chain []indexing.RecordID) Resolution {
	var b strings.Builder
	b.WriteString(base)

	// ancestors first; each finished prefix is a directory path
	prefixes := make([]string, len(chain))
	for k := len(names) - 1; k >= 0; k-- {
		b.WriteString(names[k])
		if k > 0 {
			prefixes[k-1] = b.String()
			b.WriteString(r.layout.Separator)
		}
	}
	path := b.String()

	r.remember(chain, prefixes)
	if isDir {
		r.remember([]indexing.RecordID{id}, []string{path})
	}
	return Resolution{Path: path, Status: StatusComplete}
}

func (r *Resolver) partial(marker string, status Status, names []string) Resolution {
	var b strings.Builder
	b.WriteString(marker)
	for k := len(names) - 1; k >= 0; k-- {
		b.WriteString(r.layout.Separator)
		b.WriteString(names[k])
	}
	return Resolution{Path: b.String(), Status: status}
}

func (r *Resolver) cached(id indexing.RecordID) (string, bool) {
	r.mu.RLock()
	p, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return p, ok
}

func (r *Resolver) remember(ids []indexing.RecordID, paths []string) {
	if r.opts.CacheLimit < 0 || len(ids) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range ids {
		if len(r.cache) >= r.opts.CacheLimit {
			return
		}
		r.cache[id] = paths[i]
	}
}

// Stats returns cache counters.
func (r *Resolver) Stats() ResolverStats {
	r.mu.RLock()
	n := len(r.cache)
	r.mu.RUnlock()
	return ResolverStats{CacheHits: r.hits.Load(), CacheMisses: r.misses.Load(), Cached: n}
}
