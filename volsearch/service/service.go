// Package service builds one index per volume in parallel and exposes the
// result as a read-only Session.
package service

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/volsearch/volsearch/config"
	"github.com/ZanzyTHEbar/volsearch/volsearch/escalation"
	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem"
	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"
	"github.com/ZanzyTHEbar/volsearch/volsearch/search"
	"github.com/ZanzyTHEbar/volsearch/volsearch/trees"
	"github.com/ZanzyTHEbar/volsearch/volsearch/usn"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Options controls what a Service indexes and how.
type Options struct {
	// Volumes are drive letters to bulk-enumerate. Empty means every fixed
	// volume the provider reports.
	Volumes []string
	// Roots are directories indexed by traversal only.
	Roots []string
	// FallbackRoots overrides where a volume is traversed when it falls
	// back. The default is the volume root.
	FallbackRoots map[string]string
	AllowFallback bool

	Escalation escalation.Options
	Enumerator usn.Options
	Builder    indexing.BuilderOptions
	Traversal  filesystem.TraverserOptions
	Resolver   trees.ResolverOptions
	Search     search.Options
}

// OptionsFromConfig maps loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Volumes:       cfg.Index.Volumes,
		Roots:         cfg.Index.Roots,
		AllowFallback: cfg.Index.AllowFallback,
		Escalation: escalation.Options{
			SkipElevation: cfg.Index.SkipElevation,
		},
		Enumerator: usn.Options{
			BufferSize:    cfg.Index.BufferSize,
			MaxBufferSize: cfg.Index.MaxBufferSize,
			BatchSize:     cfg.Index.BatchSize,
		},
		Builder: indexing.BuilderOptions{PipelineDepth: cfg.Index.PipelineDepth},
		Traversal: filesystem.TraverserOptions{
			Workers:   cfg.Index.Workers,
			BatchSize: cfg.Index.BatchSize,
			Exclude:   cfg.Index.Exclude,
		},
		Resolver: trees.ResolverOptions{
			MaxDepth:   cfg.Index.MaxPathDepth,
			CacheLimit: cfg.Index.ResolverCache,
		},
		Search: search.Options{
			ExcludeHidden: !cfg.Search.IncludeHidden,
			Limit:         cfg.Search.MaxResults,
		},
	}
}

// Service runs build passes. All passes share one escalation coordinator, so
// the prompt fires at most once for the lifetime of the service and later
// passes reuse the decided outcome.
type Service struct {
	opts     Options
	provider usn.Provider
	coord    *escalation.Coordinator
	engine   *search.Engine
	metrics  *common.BuildMetrics
	log      zerolog.Logger
}

// New creates a service. prompter and restarter may be nil, in which case
// access denied volumes fall back without asking.
func New(opts Options, provider usn.Provider, prompter escalation.Prompter, restarter escalation.Restarter, log zerolog.Logger) *Service {
	if provider == nil {
		provider = usn.System{}
	}
	return &Service{
		opts:     opts,
		provider: provider,
		coord:    escalation.NewCoordinator(opts.Escalation, prompter, restarter, log),
		engine:   search.NewEngine(opts.Search, log),
		metrics:  common.NewBuildMetrics(),
		log:      log.With().Str("component", "service").Logger(),
	}
}

// Metrics returns counters accumulated over every pass of this service.
func (s *Service) Metrics() map[string]interface{} {
	return s.metrics.GetMetrics()
}

// target is one unit of the build fan-out.
type target struct {
	name string
	root string // traversal root used on fallback
	bulk bool
	err  error
}

type volumeBuild struct {
	result VolumeResult
	store  *indexing.Store
}

// Build indexes every configured volume and root in parallel. A failing
// volume is reported and left out of the session; it never affects the
// others. The returned error is non-nil only when ctx ends, in which case
// the session is nil and the report is partial.
func (s *Service) Build(ctx context.Context) (*Session, Report, error) {
	report := Report{RunID: uuid.New(), Started: time.Now()}
	log := s.log.With().Str("run_id", report.RunID.String()).Logger()

	s.metrics.RecordPass()
	targets := s.targets(ctx, log)
	log.Info().Int("targets", len(targets)).Msg("Starting index build")

	p := pool.NewWithResults[volumeBuild]()
	for _, t := range targets {
		p.Go(func() volumeBuild {
			return s.buildTarget(ctx, t, log)
		})
	}
	builds := p.Wait()
	slices.SortFunc(builds, func(a, b volumeBuild) int {
		return strings.Compare(a.result.Volume, b.result.Volume)
	})

	var stores []*indexing.Store
	for _, b := range builds {
		report.Volumes = append(report.Volumes, b.result)
		if b.result.Status == StatusRestartRequested {
			report.RestartRequested = true
		}
		if b.store != nil {
			stores = append(stores, b.store)
		}
	}
	report.Escalation = s.coord.State()
	report.Prompts = s.coord.PromptCount()
	report.Duration = time.Since(report.Started)

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("Index build abandoned")
		return nil, report, err
	}

	log.Info().
		Int("volumes", len(stores)).
		Int64("records", report.Records()).
		Bool("restart_requested", report.RestartRequested).
		Dur("duration", report.Duration).
		Msg("Index build finished")
	return newSession(report.RunID, stores, s.opts.Resolver, s.engine, s.opts.Search), report, nil
}

// Rebuild builds a fresh session. The previous session stays valid for
// readers still holding it and is otherwise dropped. An escalation decision
// made by an earlier pass is reused without prompting.
func (s *Service) Rebuild(ctx context.Context, previous *Session) (*Session, Report, error) {
	if previous != nil {
		s.log.Info().Str("previous_run_id", previous.ID().String()).Msg("Rebuilding index")
	}
	return s.Build(ctx)
}

// targets lists the volumes and roots of this pass, deduplicated by name.
func (s *Service) targets(ctx context.Context, log zerolog.Logger) []target {
	volumes := s.opts.Volumes
	if len(volumes) == 0 {
		found, err := s.provider.FixedVolumes(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Volume discovery failed")
		}
		volumes = found
	}

	seen := make(map[string]bool)
	var out []target
	for _, raw := range volumes {
		name := usn.NormalizeVolume(raw)
		if name == "" {
			if !seen[raw] {
				seen[raw] = true
				out = append(out, target{
					name: raw,
					err:  common.NewVolumeError(raw, "parse", common.WrapError(common.ErrUnsupportedVolume, "not a drive letter")),
				})
			}
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		root := usn.RootPath(name)
		if r, ok := s.opts.FallbackRoots[name]; ok {
			root = r
		}
		out = append(out, target{name: name, root: root, bulk: true})
	}
	for _, raw := range s.opts.Roots {
		name := filepath.Clean(raw)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, target{name: name, root: name})
	}
	return out
}

func (s *Service) buildTarget(ctx context.Context, t target, log zerolog.Logger) volumeBuild {
	start := time.Now()
	b := s.buildVolume(ctx, t, log.With().Str("volume", t.name).Logger())
	b.result.Volume = t.name
	b.result.Duration = time.Since(start)
	s.metrics.RecordVolume(b.result.Duration, b.result.Records, b.result.Malformed, b.result.Searchable(), b.result.Err)

	ev := log.Info()
	if b.result.Status == StatusFailed {
		ev = log.Error()
	}
	ev.Str("volume", t.name).
		Str("status", string(b.result.Status)).
		Str("source", string(b.result.Source)).
		Int64("records", b.result.Records).
		Int64("malformed", b.result.Malformed).
		AnErr("reason", b.result.Err).
		Dur("duration", b.result.Duration).
		Msg("Volume done")
	return b
}

// buildVolume routes one target through bulk enumeration, escalation and
// fallback traversal according to the error taxonomy.
func (s *Service) buildVolume(ctx context.Context, t target, log zerolog.Logger) volumeBuild {
	if t.err != nil {
		return failed(t.err)
	}
	if !t.bulk {
		return s.fallback(ctx, t, nil)
	}

	capability := s.provider.Probe(ctx, t.name)
	switch capability.Kind {
	case usn.BulkCapable:
	case usn.Excluded:
		log.Debug().Err(capability.Reason).Msg("Volume excluded")
		return skipped(capability.Reason)
	default:
		log.Debug().Err(capability.Reason).Msg("Volume cannot be bulk-enumerated")
		return s.unsupported(ctx, t, capability.Reason)
	}

	b, err := s.bulk(ctx, t, log)
	if err == nil {
		return b
	}
	switch common.Classify(err) {
	case common.KindAccessDenied:
		return s.escalate(ctx, t, err, log)
	case common.KindUnsupported:
		return s.unsupported(ctx, t, err)
	default:
		return failed(err)
	}
}

func (s *Service) bulk(ctx context.Context, t target, log zerolog.Logger) (volumeBuild, error) {
	dev, err := s.provider.Open(ctx, t.name)
	if err != nil {
		return volumeBuild{}, err
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close volume handle")
		}
	}()

	store := indexing.NewStore(indexing.Layout{
		Volume:    t.name,
		Root:      usn.RootPath(t.name),
		Separator: `\`,
		Source:    indexing.SourceBulk,
	})
	enum := usn.NewEnumerator(t.name, dev, s.opts.Enumerator, s.log)
	stats, err := indexing.NewBuilder(store, s.opts.Builder, s.log).Build(ctx, enum)
	if err != nil {
		return volumeBuild{}, err
	}

	es := enum.Stats()
	log.Debug().
		Int64("calls", es.Calls).
		Int64("buffer_grows", es.Grows).
		Msg("Bulk enumeration complete")
	return volumeBuild{
		store: store,
		result: VolumeResult{
			Status:     StatusIndexed,
			Source:     indexing.SourceBulk,
			Records:    stats.Inserted,
			Malformed:  stats.Malformed,
			Duplicates: stats.Duplicates,
		},
	}, nil
}

func (s *Service) escalate(ctx context.Context, t target, cause error, log zerolog.Logger) volumeBuild {
	outcome, err := s.coord.HandleAccessDenied(ctx, t.name)
	if err != nil {
		return failed(err)
	}
	log.Debug().Stringer("outcome", outcome).Msg("Access denied handled")

	switch outcome {
	case escalation.OutcomeRestart:
		return volumeBuild{result: VolumeResult{Status: StatusRestartRequested, Err: cause}}
	case escalation.OutcomeSkip:
		return skipped(cause)
	default:
		if !s.opts.AllowFallback {
			return skipped(cause)
		}
		return s.fallback(ctx, t, cause)
	}
}

func (s *Service) unsupported(ctx context.Context, t target, cause error) volumeBuild {
	if !s.opts.AllowFallback {
		return skipped(cause)
	}
	return s.fallback(ctx, t, cause)
}

// fallback indexes t by traversing its root. reason is why bulk enumeration
// was not used; it is nil for plain roots.
func (s *Service) fallback(ctx context.Context, t target, reason error) volumeBuild {
	tr := filesystem.NewTraverser(t.root, s.opts.Traversal, s.log)
	store := indexing.NewStore(tr.Layout(t.name))
	stats, err := indexing.NewBuilder(store, s.opts.Builder, s.log).Build(ctx, tr)
	if err != nil {
		return failed(common.NewVolumeError(t.name, "traverse", err))
	}

	ts := tr.Stats()
	s.log.Debug().
		Str("volume", t.name).
		Int64("dirs", ts.DirsProcessed).
		Int64("errors", ts.ErrorsFound).
		Int64("excluded", ts.Excluded).
		Int64("mounts_skipped", ts.MountsSkipped).
		Msg("Traversal complete")
	return volumeBuild{
		store: store,
		result: VolumeResult{
			Status:     StatusFallback,
			Source:     indexing.SourceFallback,
			Err:        reason,
			Records:    stats.Inserted,
			Malformed:  stats.Malformed,
			Duplicates: stats.Duplicates,
		},
	}
}

func failed(err error) volumeBuild {
	return volumeBuild{result: VolumeResult{Status: StatusFailed, Err: err}}
}

func skipped(err error) volumeBuild {
	return volumeBuild{result: VolumeResult{Status: StatusSkipped, Err: err}}
}
