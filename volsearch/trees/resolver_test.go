package trees

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frozenStore(t *testing.T, recs ...indexing.FileRecord) *indexing.Store {
	t.Helper()
	store := indexing.NewStore(indexing.Layout{Volume: "C:", Root: `C:\`, Separator: `\`})
	for _, r := range recs {
		_, err := store.Put(r)
		require.NoError(t, err)
	}
	store.Freeze()
	return store
}

func dir(id, parent indexing.RecordID, name string) indexing.FileRecord {
	return indexing.FileRecord{ID: id, ParentID: parent, Name: name, IsDir: true}
}

func file(id, parent indexing.RecordID, name string) indexing.FileRecord {
	return indexing.FileRecord{ID: id, ParentID: parent, Name: name}
}

func TestResolver_DepthFiveTree(t *testing.T) {
	store := frozenStore(t,
		dir(1, indexing.RootID, "a"),
		dir(2, 1, "b"),
		dir(3, 2, "c"),
		dir(4, 3, "d"),
		file(5, 4, "e.txt"),
		file(6, 1, "top.txt"),
		dir(7, indexing.RootID, "other"),
	)

	want := map[indexing.RecordID]string{
		1: `C:\a`,
		2: `C:\a\b`,
		3: `C:\a\b\c`,
		4: `C:\a\b\c\d`,
		5: `C:\a\b\c\d\e.txt`,
		6: `C:\a\top.txt`,
		7: `C:\other`,
	}

	// Resolve twice so the second pass runs against a warm cache.
	r := NewResolver(store, ResolverOptions{})
	for pass := range 2 {
		for id, path := range want {
			res, err := r.Resolve(id)
			require.NoError(t, err)
			assert.Equal(t, StatusComplete, res.Status, "pass %d id %d", pass, id)
			assert.Equal(t, path, res.Path, "pass %d id %d", pass, id)
		}
	}
	assert.Positive(t, r.Stats().CacheHits)
	assert.Positive(t, r.Stats().Cached)
}

func TestResolver_WithoutCache(t *testing.T) {
	store := frozenStore(t, dir(1, indexing.RootID, "x"), file(2, 1, "y"))
	r := NewResolver(store, ResolverOptions{CacheLimit: -1})

	for range 2 {
		res, err := r.Resolve(2)
		require.NoError(t, err)
		assert.Equal(t, `C:\x\y`, res.Path)
	}
	assert.Zero(t, r.Stats().Cached)
}

func TestResolver_CacheIsBounded(t *testing.T) {
	store := frozenStore(t,
		dir(1, indexing.RootID, "a"),
		dir(2, 1, "b"),
		dir(3, 2, "c"),
		file(4, 3, "f"),
	)
	r := NewResolver(store, ResolverOptions{CacheLimit: 2})
	res, err := r.Resolve(4)
	require.NoError(t, err)
	assert.Equal(t, `C:\a\b\c\f`, res.Path)
	assert.Equal(t, 2, r.Stats().Cached)
}

func TestResolver_Cycle(t *testing.T) {
	store := frozenStore(t,
		dir(10, 11, "ping"),
		dir(11, 10, "pong"),
		file(12, 10, "stuck.txt"),
	)
	r := NewResolver(store, ResolverOptions{MaxDepth: 16})

	res, err := r.Resolve(12)
	require.NoError(t, err)
	assert.Equal(t, StatusTruncated, res.Status)
	assert.True(t, strings.HasPrefix(res.Path, TruncationMarker+`\`))
	assert.True(t, strings.HasSuffix(res.Path, `\ping\stuck.txt`))
	assert.Equal(t, 16, strings.Count(res.Path, `\`))
}

func TestResolver_Orphan(t *testing.T) {
	store := frozenStore(t,
		dir(20, 999, "lost"),
		file(21, 20, "found.txt"),
	)
	r := NewResolver(store, ResolverOptions{})

	res, err := r.Resolve(21)
	require.NoError(t, err)
	assert.Equal(t, StatusOrphaned, res.Status)
	assert.Equal(t, `?\lost\found.txt`, res.Path)

	// partial results are never cached
	assert.Zero(t, r.Stats().Cached)
}

func TestResolver_Errors(t *testing.T) {
	store := frozenStore(t, file(1, indexing.RootID, "a"))
	_, err := NewResolver(store, ResolverOptions{}).Resolve(2)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)

	unfrozen := indexing.NewStore(indexing.Layout{Volume: "C:", Root: `C:\`})
	_, err = NewResolver(unfrozen, ResolverOptions{}).Resolve(1)
	assert.ErrorIs(t, err, common.ErrIndexNotFrozen)
}

func TestResolver_ScenarioTenThousand(t *testing.T) {
	const total = 10_000
	var recs []indexing.FileRecord
	for i := indexing.RecordID(1); i <= total; i++ {
		recs = append(recs, indexing.FileRecord{
			ID:       i,
			ParentID: i / 10,
			Name:     fmt.Sprintf("n%d", i),
			IsDir:    i < total/10,
		})
	}
	store := frozenStore(t, recs...)
	require.Equal(t, total, store.Len())

	res, err := NewResolver(store, ResolverOptions{}).Resolve(9876)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, `C:\n9\n98\n987\n9876`, res.Path)
}

func TestResolver_Concurrent(t *testing.T) {
	var recs []indexing.FileRecord
	recs = append(recs, dir(1, indexing.RootID, "root"))
	for d := indexing.RecordID(0); d < 20; d++ {
		dirID := 100 + d
		recs = append(recs, dir(dirID, 1, fmt.Sprintf("d%02d", d)))
		for f := indexing.RecordID(0); f < 50; f++ {
			recs = append(recs, file(10_000+d*100+f, dirID, fmt.Sprintf("f%02d", f)))
		}
	}
	store := frozenStore(t, recs...)
	r := NewResolver(store, ResolverOptions{CacheLimit: 8})

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := indexing.RecordID(0); d < 20; d++ {
				f := indexing.RecordID((int(d) + w) % 50)
				res, err := r.Resolve(10_000 + d*100 + f)
				assert.NoError(t, err)
				assert.Equal(t, fmt.Sprintf(`C:\root\d%02d\f%02d`, d, f), res.Path)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Stats().Cached, 8)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "complete", StatusComplete.String())
	assert.Equal(t, "truncated", StatusTruncated.String())
	assert.Equal(t, "orphaned", StatusOrphaned.String())
}
