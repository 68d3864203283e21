// Package engine owns the ad engine lifecycle: one ingestion run, then
// queries, then shutdown. Engine is an explicit value; Singleton offers the
// construct-once accessor for callers that want a process-wide instance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/budget"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/ingest"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/query"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/source"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/tracing"
)

// SourceOpener opens the record source for the ingestion run.
type SourceOpener func(ctx context.Context) (ads.RecordSource, error)

// FileSource opens a line-oriented JSON ads file.
func FileSource(path string) SourceOpener {
	return func(context.Context) (ads.RecordSource, error) {
		return source.OpenFile(path)
	}
}

// Closer releases a resource the engine owns.
type Closer func(ctx context.Context) error

// Deps is everything an Engine needs. Index, Catalog and Source are
// required; the rest default to no-ops.
type Deps struct {
	Index   ads.IndexStore
	Catalog ads.CatalogStore
	Source  SourceOpener

	Budget       budget.Loader
	BudgetSource string

	Search  config.SearchConfig
	Breaker config.BreakerConfig

	Metrics *metrics.Metrics
	Tracer  *tracing.Tracer
	Tracker analytics.Tracker

	// Closers run in reverse order on Shutdown.
	Closers []Closer
}

// Engine runs ingestion once and then serves SelectAds.
type Engine struct {
	deps     Deps
	pipeline *ingest.Pipeline
	query    *query.Engine
	logger   *slog.Logger

	initOnce sync.Once
	initErr  error
	ready    atomic.Bool
	report   atomic.Pointer[ingest.Report]
	budget   atomic.Pointer[budget.Report]

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(deps Deps) *Engine {
	if deps.Budget == nil {
		deps.Budget = budget.NopLoader{}
	}
	if deps.Tracker == nil {
		deps.Tracker = analytics.Discard
	}
	return &Engine{
		deps: deps,
		pipeline: ingest.New(deps.Index, deps.Catalog,
			ingest.WithMetrics(deps.Metrics),
			ingest.WithTracker(deps.Tracker),
		),
		query: query.New(deps.Index, deps.Catalog,
			query.WithDedupe(deps.Search.DedupeResults),
			query.WithMaxConcurrent(deps.Search.MaxConcurrentQueries),
			query.WithBreakers(deps.Breaker),
			query.WithMetrics(deps.Metrics),
			query.WithTracer(deps.Tracer),
			query.WithTracker(deps.Tracker),
		),
		logger: slog.Default().With("component", "engine"),
	}
}

// Init runs ingestion and then the budget load. Only the first call does
// any work; concurrent callers wait for it and all get its result. A failed
// ingestion leaves the engine not ready, and SelectAds then returns empty.
// A failed budget load is logged and does not affect readiness.
func (e *Engine) Init(ctx context.Context) error {
	e.initOnce.Do(func() {
		e.initErr = e.init(ctx)
		if e.initErr != nil {
			e.logger.Error("engine initialization failed", "error", e.initErr)
			return
		}
		e.ready.Store(true)
		e.logger.Info("engine ready")
	})
	return e.initErr
}

func (e *Engine) init(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic during ingestion: %v", apperrors.ErrInternal, r)
		}
	}()
	if e.deps.Index == nil || e.deps.Catalog == nil || e.deps.Source == nil {
		return fmt.Errorf("%w: engine needs an index, a catalog and a source", apperrors.ErrInvalidInput)
	}

	src, err := e.deps.Source(ctx)
	if err != nil {
		return fmt.Errorf("opening ads source: %w", err)
	}
	defer src.Close()

	report, err := e.pipeline.Run(ctx, src)
	if report != nil {
		e.report.Store(report)
	}
	if err != nil {
		return fmt.Errorf("ingesting ads: %w", err)
	}

	budgetReport, err := e.deps.Budget.Load(ctx, e.deps.BudgetSource)
	if err != nil {
		e.logger.Error("budget load failed", "source", e.deps.BudgetSource, "error", err)
	} else {
		e.budget.Store(budgetReport)
	}
	return nil
}

// Ready reports whether Init completed successfully.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Report returns the ingestion report, or nil if ingestion never ran.
func (e *Engine) Report() *ingest.Report {
	return e.report.Load()
}

// BudgetReport returns the budget load report, or nil.
func (e *Engine) BudgetReport() *budget.Report {
	return e.budget.Load()
}

// SelectAds returns the ads matching q, or an empty slice if the engine is
// not ready.
func (e *Engine) SelectAds(ctx context.Context, q string) []ads.Advertisement {
	if !e.ready.Load() {
		e.logger.Warn("query before successful initialization", "query", q)
		return []ads.Advertisement{}
	}
	return e.query.SelectAds(ctx, q)
}

// Lookup fetches one ad by id.
func (e *Engine) Lookup(ctx context.Context, adID int64) (*ads.Advertisement, error) {
	if !e.ready.Load() {
		return nil, apperrors.ErrNotInitialized
	}
	return e.query.Lookup(ctx, adID)
}

// Shutdown marks the engine not ready and runs the closers in reverse
// order. It is idempotent.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.ready.Store(false)
		var errs []error
		for i := len(e.deps.Closers) - 1; i >= 0; i-- {
			if err := e.deps.Closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		e.shutdownErr = errors.Join(errs...)
		if e.shutdownErr != nil {
			e.logger.Error("engine shutdown finished with errors", "error", e.shutdownErr)
			return
		}
		e.logger.Info("engine shut down")
	})
	return e.shutdownErr
}

// Singleton constructs and initializes one Engine on the first Get. Later
// calls ignore their arguments and return that same Engine, including when
// its initialization failed.
type Singleton struct {
	once   sync.Once
	engine *Engine
}

func (s *Singleton) Get(ctx context.Context, deps Deps) *Engine {
	s.once.Do(func() {
		e := New(deps)
		// Init logs its own failure; the engine is returned either way.
		_ = e.Init(ctx)
		s.engine = e
	})
	return s.engine
}
