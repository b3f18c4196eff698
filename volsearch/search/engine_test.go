package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStore(t *testing.T, volume string, recs ...indexing.FileRecord) *indexing.Store {
	t.Helper()
	s := indexing.NewStore(indexing.Layout{Volume: volume, Root: volume + `\`})
	for _, r := range recs {
		_, err := s.Put(r)
		require.NoError(t, err)
	}
	s.Freeze()
	return s
}

func ids(hits []Hit) []indexing.RecordID {
	out := make([]indexing.RecordID, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func sampleStore(t *testing.T) *indexing.Store {
	return buildStore(t, "C:",
		indexing.FileRecord{ID: 9, Name: "Annual Report 2023.pdf"},
		indexing.FileRecord{ID: 3, Name: "reports", IsDir: true},
		indexing.FileRecord{ID: 5, Name: "report.docx", ParentID: 3},
		indexing.FileRecord{ID: 7, Name: "REPORT-final.PDF", ParentID: 3, Hidden: true},
		indexing.FileRecord{ID: 11, Name: "notes.txt"},
		indexing.FileRecord{ID: 12, Name: "re"},
	)
}

func TestSearch_SubstringCaseInsensitive(t *testing.T) {
	e := NewEngine(Options{}, zerolog.Nop())
	hits, err := e.Search(context.Background(), "RePoRt", sampleStore(t))
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{3, 5, 7, 9}, ids(hits), "ascending id order")
	assert.Equal(t, "reports", hits[0].Name)
	assert.True(t, hits[0].IsDir)
	assert.Equal(t, "C:", hits[0].Volume)
}

func TestSearch_TokensAreANDed(t *testing.T) {
	e := NewEngine(Options{}, zerolog.Nop())
	hits, err := e.Search(context.Background(), "  report   pdf ", sampleStore(t))
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{7, 9}, ids(hits))
}

func TestSearch_ShortTokensScan(t *testing.T) {
	e := NewEngine(Options{}, zerolog.Nop())
	hits, err := e.Search(context.Background(), "re", sampleStore(t))
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{3, 5, 7, 9, 12}, ids(hits))

	hits, err = e.Search(context.Background(), "t", sampleStore(t))
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{3, 5, 7, 9, 11}, ids(hits))
}

func TestSearch_DefaultOptionsMatchHidden(t *testing.T) {
	store := buildStore(t, "C:",
		indexing.FileRecord{ID: 1, Name: "report.txt", Hidden: true},
		indexing.FileRecord{ID: 2, Name: "Report.doc"},
	)
	hits, err := NewEngine(Options{}, zerolog.Nop()).Search(context.Background(), "report", store)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{1, 2}, ids(hits))
	assert.Equal(t, "report.txt", hits[0].Name)
}

func TestSearch_Filters(t *testing.T) {
	store := sampleStore(t)
	e := NewEngine(Options{}, zerolog.Nop())
	ctx := context.Background()

	hits, err := e.SearchWith(ctx, "report", Options{ExcludeHidden: true}, store)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{3, 5, 9}, ids(hits), "hidden records are excluded")

	hits, err = e.SearchWith(ctx, "report", Options{Kind: KindFiles}, store)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{5, 7, 9}, ids(hits))

	hits, err = e.SearchWith(ctx, "report", Options{Kind: KindFolders}, store)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{3}, ids(hits))

	hits, err = e.SearchWith(ctx, "report", Options{Extensions: []string{".PDF"}}, store)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{7, 9}, ids(hits))

	hits, err = e.SearchWith(ctx, "report", Options{Extensions: []string{"docx", "txt"}}, store)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{5}, ids(hits))
}

func TestSearch_LimitAndStoreOrder(t *testing.T) {
	c := buildStore(t, "C:",
		indexing.FileRecord{ID: 2, Name: "data-2.csv"},
		indexing.FileRecord{ID: 1, Name: "data-1.csv"},
	)
	d := buildStore(t, "D:",
		indexing.FileRecord{ID: 1, Name: "data-d.csv"},
	)
	e := NewEngine(Options{}, zerolog.Nop())

	hits, err := e.Search(context.Background(), "data", c, d)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "C:", hits[0].Volume)
	assert.Equal(t, indexing.RecordID(1), hits[0].ID)
	assert.Equal(t, "D:", hits[2].Volume)

	hits, err = e.SearchWith(context.Background(), "data", Options{Limit: 2}, c, d)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{1, 2}, ids(hits))
	assert.Equal(t, "C:", hits[1].Volume)
}

func TestSearch_EmptyQuery(t *testing.T) {
	e := NewEngine(Options{}, zerolog.Nop())
	for _, q := range []string{"", "   ", "\t\n"} {
		hits, err := e.Search(context.Background(), q, sampleStore(t))
		assert.NoError(t, err)
		assert.Empty(t, hits)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	e := NewEngine(Options{}, zerolog.Nop())
	hits, err := e.Search(context.Background(), "zzzz", sampleStore(t))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_UnfrozenStore(t *testing.T) {
	unfrozen := indexing.NewStore(indexing.Layout{Volume: "E:"})
	e := NewEngine(Options{}, zerolog.Nop())

	_, err := e.Search(context.Background(), "x", sampleStore(t), unfrozen)
	assert.ErrorIs(t, err, common.ErrIndexNotFrozen)

	// the failure is scoped to that call
	hits, err := e.Search(context.Background(), "notes", sampleStore(t))
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearch_Canceled(t *testing.T) {
	e := NewEngine(Options{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Search(ctx, "report", sampleStore(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_TrigramsNeverDropMatches(t *testing.T) {
	var recs []indexing.FileRecord
	for i := 1; i <= 2000; i++ {
		recs = append(recs, indexing.FileRecord{ID: indexing.RecordID(i), Name: fmt.Sprintf("file_%04d_Ärger.log", i)})
	}
	store := buildStore(t, "C:", recs...)
	e := NewEngine(Options{}, zerolog.Nop())

	hits, err := e.Search(context.Background(), "0_ä", store)
	require.NoError(t, err)
	// ids 1..2000 whose four digit number ends in 0
	assert.Len(t, hits, 200)

	hits, err = e.Search(context.Background(), "_1999_ärger", store)
	require.NoError(t, err)
	assert.Equal(t, []indexing.RecordID{1999}, ids(hits))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar.txt"}, Tokenize("  FOO\tBar.TXT "))
	assert.Empty(t, Tokenize(" "))
}
