package service

import (
	"context"
	"slices"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"
	"github.com/ZanzyTHEbar/volsearch/volsearch/search"
	"github.com/ZanzyTHEbar/volsearch/volsearch/trees"

	"github.com/google/uuid"
)

// Session is the read-only query surface over the frozen stores of one build
// run. It is safe for concurrent use and never changes after creation.
type Session struct {
	id        uuid.UUID
	volumes   []string
	stores    map[string]*indexing.Store
	resolvers map[string]*trees.Resolver
	engine    *search.Engine
	defaults  search.Options
}

func newSession(id uuid.UUID, stores []*indexing.Store, resolverOpts trees.ResolverOptions, engine *search.Engine, defaults search.Options) *Session {
	s := &Session{
		id:        id,
		stores:    make(map[string]*indexing.Store, len(stores)),
		resolvers: make(map[string]*trees.Resolver, len(stores)),
		engine:    engine,
		defaults:  defaults,
	}
	for _, st := range stores {
		s.volumes = append(s.volumes, st.Volume())
		s.stores[st.Volume()] = st
		s.resolvers[st.Volume()] = trees.NewResolver(st, resolverOpts)
	}
	slices.Sort(s.volumes)
	return s
}

// ID identifies the build run that produced the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Volumes returns the indexed volume names in search order.
func (s *Session) Volumes() []string { return slices.Clone(s.volumes) }

// Store returns the frozen store of volume.
func (s *Session) Store(volume string) (*indexing.Store, bool) {
	st, ok := s.stores[volume]
	return st, ok
}

// Len is the number of records across all volumes.
func (s *Session) Len() int {
	n := 0
	for _, st := range s.stores {
		n += st.Len()
	}
	return n
}

// Search runs text against every volume with the configured defaults.
func (s *Session) Search(ctx context.Context, text string) ([]search.Hit, error) {
	return s.SearchWith(ctx, text, s.defaults)
}

// SearchWith runs text against every volume with opts.
func (s *Session) SearchWith(ctx context.Context, text string, opts search.Options) ([]search.Hit, error) {
	stores := make([]*indexing.Store, len(s.volumes))
	for i, v := range s.volumes {
		stores[i] = s.stores[v]
	}
	return s.engine.SearchWith(ctx, text, opts, stores...)
}

// ResolvePath rebuilds the full path of a hit.
func (s *Session) ResolvePath(volume string, id indexing.RecordID) (trees.Resolution, error) {
	r, ok := s.resolvers[volume]
	if !ok {
		return trees.Resolution{}, common.WrapError(common.ErrVolumeNotFound, "resolve %s", volume)
	}
	return r.Resolve(id)
}
