package indexing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchesSource replays fixed batches.
func batchesSource(batches ...Batch) Source {
	return SourceFunc(func(ctx context.Context, out chan<- Batch) error {
		for _, b := range batches {
			if err := Emit(ctx, out, b); err != nil {
				return err
			}
		}
		return nil
	})
}

func newTestBuilder(store *Store) *Builder {
	return NewBuilder(store, BuilderOptions{PipelineDepth: 2}, zerolog.Nop())
}

func TestBuilder_DuplicatesAcrossBatches(t *testing.T) {
	store := NewStore(testLayout())
	src := batchesSource(
		Batch{
			{ID: 1, ParentID: RootID, Name: "docs", IsDir: true},
			{ID: 2, ParentID: 1, Name: "draft.txt"},
		},
		Batch{
			{ID: 3, ParentID: 1, Name: "final.txt"},
			{ID: 2, ParentID: 1, Name: "renamed.txt"},
		},
	)

	stats, err := newTestBuilder(store).Build(context.Background(), src)
	require.NoError(t, err)
	require.True(t, store.Frozen())

	assert.Equal(t, int64(4), stats.Received)
	assert.Equal(t, int64(3), stats.Inserted)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Equal(t, int64(2), stats.Batches)
	assert.Equal(t, 3, store.Len())

	rec, ok := store.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "renamed.txt", rec.Name, "last write wins")
}

func TestBuilder_SkipsMalformed(t *testing.T) {
	store := NewStore(testLayout())
	src := batchesSource(Batch{
		{ID: 1, Name: "ok.txt"},
		{ID: RootID, Name: "zero"},
		{ID: 2, ParentID: 2, Name: "self"},
		{ID: 3, Name: ""},
		{ID: 4, Name: ".."},
		{ID: 5, Name: `a\b`},
		{ID: 6, Name: "a/b"},
		{ID: 7, Name: "nul\x00"},
		{ID: 8, Name: string([]byte{0xff, 0xfe})},
		{ID: 9, Name: "flagged", Malformed: true},
	})

	stats, err := newTestBuilder(store).Build(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.Malformed)
	assert.Equal(t, int64(1), stats.Inserted)

	_, ok := store.Lookup(1)
	assert.True(t, ok)
}

func TestBuilder_SourceFailureLeavesStoreUnfrozen(t *testing.T) {
	store := NewStore(testLayout())
	boom := errors.New("device gone")
	src := SourceFunc(func(ctx context.Context, out chan<- Batch) error {
		if err := Emit(ctx, out, Batch{{ID: 1, Name: "a"}}); err != nil {
			return err
		}
		return boom
	})

	_, err := newTestBuilder(store).Build(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.Frozen())
	assert.Equal(t, 0, store.Len())
}

func TestBuilder_Canceled(t *testing.T) {
	store := NewStore(testLayout())
	ctx, cancel := context.WithCancel(context.Background())
	src := SourceFunc(func(ctx context.Context, out chan<- Batch) error {
		cancel()
		for i := RecordID(1); ; i++ {
			if err := Emit(ctx, out, Batch{{ID: i, Name: "x"}}); err != nil {
				return err
			}
		}
	})

	_, err := newTestBuilder(store).Build(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, store.Frozen())
}

func TestBuilder_RejectsFrozenStore(t *testing.T) {
	store := NewStore(testLayout())
	store.Freeze()
	_, err := newTestBuilder(store).Build(context.Background(), batchesSource())
	assert.ErrorIs(t, err, common.ErrStoreFrozen)
}

func TestBuilder_TenThousandRecords(t *testing.T) {
	const total = 10_000
	const fanout = 10

	// Ids 1..total form a tree where node i's parent is i/fanout; the first
	// fanout-1 ids hang off the root. That keeps depth at four levels.
	var recs Batch
	for i := RecordID(1); i <= total; i++ {
		parent := i / fanout
		recs = append(recs, FileRecord{
			ID:       i,
			ParentID: parent,
			Name:     fmt.Sprintf("node%05d", i),
			IsDir:    i < total/fanout,
			Size:     UnknownSize,
		})
	}

	var batches []Batch
	for start := 0; start < len(recs); start += 512 {
		end := min(start+512, len(recs))
		batches = append(batches, recs[start:end])
	}

	store := NewStore(testLayout())
	stats, err := newTestBuilder(store).Build(context.Background(), batchesSource(batches...))
	require.NoError(t, err)
	assert.Equal(t, total, store.Len())
	assert.Equal(t, int64(total), stats.Inserted)
	assert.Zero(t, stats.Duplicates)
	assert.Zero(t, stats.Malformed)

	leaf, ok := store.Lookup(9876)
	require.True(t, ok)
	assert.Equal(t, RecordID(987), leaf.ParentID)
	assert.Equal(t, "node09876", leaf.Name)
}
