package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"

	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"
)

// TraverserOptions tunes a fallback traversal.
type TraverserOptions struct {
	// Workers bounds the directories listed concurrently.
	Workers int
	// BatchSize bounds the records per emitted batch.
	BatchSize int
	// MaxDepth limits how deep entries are recorded; the root's children are
	// at depth 1. Values below 1 mean unlimited.
	MaxDepth int
	// Exclude holds gitignore-style patterns matched against root-relative
	// slash paths. A matching directory is skipped with its subtree.
	Exclude []string
}

// TraversalStats tracks what a traversal did.
type TraversalStats struct {
	DirsProcessed  int64
	FilesProcessed int64
	ErrorsFound    int64
	Excluded       int64
	MountsSkipped  int64
	Duration       time.Duration
}

// dirTask is one directory waiting to be listed.
type dirTask struct {
	path  string
	id    indexing.RecordID
	depth int
}

// Traverser indexes a directory tree by listing it breadth-first, one level at
// a time, with bounded concurrency. It implements indexing.Source and is used
// for volumes that cannot be bulk-enumerated.
//
// The traversal stays on the root's filesystem: a directory on another device
// is recorded but never descended into.
type Traverser struct {
	root    string
	opts    TraverserOptions
	exclude *ignore.GitIgnore
	log     zerolog.Logger

	device  func(path string, info fs.FileInfo) (uint64, bool)
	rootDev uint64
	devOK   bool

	nextID atomic.Uint64

	dirs     atomic.Int64
	files    atomic.Int64
	errs     atomic.Int64
	excluded atomic.Int64
	mounts   atomic.Int64
	elapsed  atomic.Int64
}

// NewTraverser creates a traverser rooted at root.
func NewTraverser(root string, opts TraverserOptions, log zerolog.Logger) *Traverser {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4096
	}
	t := &Traverser{
		root:   filepath.Clean(root),
		opts:   opts,
		log:    log.With().Str("component", "traverser").Str("root", root).Logger(),
		device: deviceID,
	}
	if len(opts.Exclude) > 0 {
		t.exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return t
}

// Layout describes how the records of this traversal form paths.
func (t *Traverser) Layout(volume string) indexing.Layout {
	sep := string(filepath.Separator)
	root := t.root
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return indexing.Layout{
		Volume:    volume,
		Root:      root,
		Separator: sep,
		Source:    indexing.SourceFallback,
	}
}

// Stats returns the counters of the last Stream call.
func (t *Traverser) Stats() TraversalStats {
	return TraversalStats{
		DirsProcessed:  t.dirs.Load(),
		FilesProcessed: t.files.Load(),
		ErrorsFound:    t.errs.Load(),
		Excluded:       t.excluded.Load(),
		MountsSkipped:  t.mounts.Load(),
		Duration:       time.Duration(t.elapsed.Load()),
	}
}

// Stream lists the tree into out. Ids are synthesized from 1 upwards and the
// root directory is indexing.RootID. Failures below the root are counted and
// skipped; only a root that cannot be listed fails the stream.
func (t *Traverser) Stream(ctx context.Context, out chan<- indexing.Batch) error {
	start := time.Now()
	t.nextID.Store(0)
	t.dirs.Store(0)
	t.files.Store(0)
	t.errs.Store(0)
	t.excluded.Store(0)
	t.mounts.Store(0)

	info, err := os.Stat(t.root)
	if err != nil {
		return common.NewVolumeError(t.root, "open root", err)
	}
	if !info.IsDir() {
		return common.NewVolumeError(t.root, "open root", fmt.Errorf("%w: not a directory", common.ErrUnsupportedVolume))
	}
	t.rootDev, t.devOK = t.device(t.root, info)

	currentLevel := []dirTask{{path: t.root, id: indexing.RootID}}
	for len(currentLevel) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			nextLevel   []dirTask
			nextLevelMu sync.Mutex
		)

		levelPool := pool.New().WithMaxGoroutines(t.opts.Workers).WithContext(ctx).WithCancelOnError()
		for _, task := range currentLevel {
			levelPool.Go(func(ctx context.Context) error {
				children, err := t.processDirectory(ctx, task, out)
				if err != nil {
					return err
				}
				if len(children) > 0 {
					nextLevelMu.Lock()
					nextLevel = append(nextLevel, children...)
					nextLevelMu.Unlock()
				}
				return nil
			})
		}
		if err := levelPool.Wait(); err != nil {
			return err
		}

		currentLevel = nextLevel
	}

	t.elapsed.Store(int64(time.Since(start)))
	t.log.Debug().
		Int64("dirs", t.dirs.Load()).
		Int64("files", t.files.Load()).
		Int64("errors", t.errs.Load()).
		Int64("mounts_skipped", t.mounts.Load()).
		Dur("duration", time.Since(start)).
		Msg("Traversal complete")
	return nil
}

// processDirectory lists one directory, emits its entries and returns the
// subdirectories to descend into. The returned error is only non-nil for
// cancellation or an unreadable root.
func (t *Traverser) processDirectory(ctx context.Context, task dirTask, out chan<- indexing.Batch) ([]dirTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(task.path)
	if err != nil {
		if task.id == indexing.RootID {
			return nil, common.NewVolumeError(t.root, "list root", err)
		}
		t.errs.Add(1)
		t.log.Debug().Err(err).Str("path", task.path).Msg("Error reading directory")
		// ReadDir returns the entries read before the failure.
	}
	t.dirs.Add(1)

	depth := task.depth + 1
	batch := make(indexing.Batch, 0, min(len(entries), t.opts.BatchSize))
	var children []dirTask

	for _, entry := range entries {
		name := entry.Name()
		childPath := filepath.Join(task.path, name)
		isDir := entry.IsDir() // symlinks report false and are never followed

		if t.isExcluded(childPath, isDir) {
			t.excluded.Add(1)
			continue
		}

		entryInfo, err := entry.Info()
		if err != nil {
			t.errs.Add(1)
			t.log.Debug().Err(err).Str("path", childPath).Msg("Error getting file info")
			continue
		}

		rec := indexing.FileRecord{
			ID:       t.nextID.Add(1),
			ParentID: task.id,
			Name:     name,
			IsDir:    isDir,
			Hidden:   isHidden(name, entryInfo),
			Size:     entryInfo.Size(),
			Modified: entryInfo.ModTime(),
		}
		if isDir {
			rec.Size = indexing.UnknownSize
			if (t.opts.MaxDepth < 1 || depth < t.opts.MaxDepth) && t.sameDevice(childPath, entryInfo) {
				children = append(children, dirTask{path: childPath, id: rec.ID, depth: depth})
			}
		} else {
			t.files.Add(1)
		}

		batch = append(batch, rec)
		if len(batch) >= t.opts.BatchSize {
			if err := indexing.Emit(ctx, out, batch); err != nil {
				return nil, err
			}
			batch = make(indexing.Batch, 0, t.opts.BatchSize)
		}
	}

	if len(batch) > 0 {
		if err := indexing.Emit(ctx, out, batch); err != nil {
			return nil, err
		}
	}
	return children, nil
}

// sameDevice reports whether dir lives on the root's filesystem. Unknown
// devices count as the same.
func (t *Traverser) sameDevice(dir string, info fs.FileInfo) bool {
	if !t.devOK {
		return true
	}
	dev, ok := t.device(dir, info)
	if !ok || dev == t.rootDev {
		return true
	}
	t.mounts.Add(1)
	t.log.Debug().Str("path", dir).Msg("Not crossing into another filesystem")
	return false
}

func (t *Traverser) isExcluded(path string, isDir bool) bool {
	if t.exclude == nil {
		return false
	}
	rel, err := filepath.Rel(t.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if t.exclude.MatchesPath(rel) {
		return true
	}
	return isDir && t.exclude.MatchesPath(rel+"/")
}
