// Package query resolves free-text queries against the keyword index and
// enriches the matched ids from the catalog.
package query

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/tracing"
)

// Engine answers SelectAds. It only reads from the stores and is safe for
// concurrent use.
type Engine struct {
	index   ads.IndexStore
	catalog ads.CatalogStore

	dedupe         bool
	slots          *semaphore.Weighted
	indexBreaker   *resilience.CircuitBreaker
	catalogBreaker *resilience.CircuitBreaker

	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	tracker analytics.Tracker
	logger  *slog.Logger
}

type Option func(*Engine)

// WithDedupe collapses repeated ad ids to their first occurrence. Off by
// default: an ad matched by n query keywords is returned n times.
func WithDedupe(on bool) Option {
	return func(e *Engine) { e.dedupe = on }
}

// WithMaxConcurrent bounds the number of queries holding store sessions at
// once. n <= 0 means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		e.slots = nil
		if n > 0 {
			e.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithBreakers guards session acquisition on each store with its own
// circuit breaker. While a breaker is open, queries return empty at once.
func WithBreakers(cfg config.BreakerConfig) Option {
	return func(e *Engine) {
		cb := resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				e.metrics.SetBreakerState(name, int(to))
			},
		}
		e.indexBreaker = resilience.NewCircuitBreaker("index", cb)
		e.catalogBreaker = resilience.NewCircuitBreaker("catalog", cb)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithTracker(t analytics.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

func New(index ads.IndexStore, catalog ads.CatalogStore, opts ...Option) *Engine {
	e := &Engine{
		index:   index,
		catalog: catalog,
		tracker: analytics.Discard,
		logger:  slog.Default().With("component", "query"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SelectAds tokenizes q, concatenates the index postings of every token in
// token order, and returns the catalog record for each posting in that
// order. It never returns nil and never fails: an unreachable store yields
// an empty result, and a posting that cannot be resolved is dropped.
func (e *Engine) SelectAds(ctx context.Context, q string) []ads.Advertisement {
	start := time.Now()
	keywords := tokenizer.Tokenize(q)
	if len(keywords) == 0 {
		e.metrics.ObserveQuery(metrics.ResultEmptyQuery, 0, time.Since(start))
		return []ads.Advertisement{}
	}
	log := logger.FromContext(ctx).With("component", "query")

	if e.slots != nil {
		if err := e.slots.Acquire(ctx, 1); err != nil {
			log.Warn("query not admitted", "error", err)
			e.metrics.ObserveQuery(metrics.ResultRejected, 0, time.Since(start))
			return []ads.Advertisement{}
		}
		defer e.slots.Release(1)
	}
	e.metrics.QueryStarted()
	defer e.metrics.QueryFinished()

	ctx, span := e.tracer.Start(ctx, "select_ads")
	defer span.End()
	span.SetAttr("keywords", len(keywords))

	event := analytics.AdQueryEvent{
		Type:      analytics.EventAdQuery,
		Query:     q,
		Keywords:  keywords,
		AdIDs:     []int64{},
		RequestID: logger.RequestID(ctx),
	}
	defer func() {
		event.LatencyMs = time.Since(start).Milliseconds()
		event.Timestamp = time.Now().UTC()
		if event.Returned == 0 && !event.Degraded {
			event.Type = analytics.EventZeroResult
		}
		e.tracker.Track(event)
	}()

	index, err := openSession(e.indexBreaker, func() (ads.IndexSession, error) { return e.index.Open(ctx) })
	if err != nil {
		return e.degraded(log, &event, "index", err, start)
	}
	defer index.Close()

	catalog, err := openSession(e.catalogBreaker, func() (ads.CatalogSession, error) { return e.catalog.Open(ctx) })
	if err != nil {
		return e.degraded(log, &event, "catalog", err, start)
	}
	defer catalog.Close()

	ids := e.resolve(ctx, log, index, keywords)
	event.Candidates = len(ids)

	result := e.enrich(ctx, log, catalog, ids)
	for i := range result {
		event.AdIDs = append(event.AdIDs, result[i].AdID)
	}
	event.Returned = len(result)
	span.SetAttr("candidates", len(ids))
	span.SetAttr("returned", len(result))

	outcome := metrics.ResultHit
	if len(result) == 0 {
		outcome = metrics.ResultZero
	}
	e.metrics.ObserveQuery(outcome, len(result), time.Since(start))
	log.Debug("ads selected", "query", q, "candidates", len(ids), "returned", len(result))
	return result
}

// Lookup fetches one ad by id through the catalog breaker.
func (e *Engine) Lookup(ctx context.Context, adID int64) (*ads.Advertisement, error) {
	catalog, err := openSession(e.catalogBreaker, func() (ads.CatalogSession, error) { return e.catalog.Open(ctx) })
	if err != nil {
		e.metrics.StoreDown("catalog")
		return nil, apperrors.Unavailable("catalog", err)
	}
	defer catalog.Close()
	return catalog.GetByID(ctx, adID)
}

// resolve returns the parsed postings of every keyword, concatenated in
// keyword order. A keyword whose lookup fails contributes nothing.
func (e *Engine) resolve(ctx context.Context, log *slog.Logger, index ads.IndexSession, keywords []string) []int64 {
	ctx, span := e.tracer.Start(ctx, "resolve")
	defer span.End()

	var seen map[int64]struct{}
	if e.dedupe {
		seen = make(map[int64]struct{})
	}
	ids := make([]int64, 0, len(keywords))
	for _, kw := range keywords {
		postings, err := index.Get(ctx, kw)
		if err != nil {
			log.Warn("keyword lookup failed", "keyword", kw, "error", err)
			continue
		}
		for _, raw := range postings {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				log.Warn("malformed ad id in index", "keyword", kw, "value", raw)
				e.metrics.CatalogMiss()
				continue
			}
			if seen != nil {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			ids = append(ids, id)
		}
	}
	span.SetAttr("postings", len(ids))
	return ids
}

// enrich fetches each id from the catalog in order. Each distinct id is
// fetched at most once per call; misses drop their slots.
func (e *Engine) enrich(ctx context.Context, log *slog.Logger, catalog ads.CatalogSession, ids []int64) []ads.Advertisement {
	ctx, span := e.tracer.Start(ctx, "enrich")
	defer span.End()

	result := make([]ads.Advertisement, 0, len(ids))
	fetched := make(map[int64]*ads.Advertisement, len(ids))
	for _, id := range ids {
		ad, ok := fetched[id]
		if !ok {
			var err error
			ad, err = catalog.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, apperrors.ErrAdNotFound) {
					log.Warn("indexed ad missing from catalog", "ad_id", id)
				} else {
					log.Error("catalog lookup failed", "ad_id", id, "error", err)
				}
				e.metrics.CatalogMiss()
			}
			fetched[id] = ad
		}
		if ad == nil {
			continue
		}
		cp := *ad
		cp.Keywords = slices.Clone(ad.Keywords)
		result = append(result, cp)
	}
	span.SetAttr("fetched", len(fetched))
	return result
}

func (e *Engine) degraded(log *slog.Logger, event *analytics.AdQueryEvent, store string, err error, start time.Time) []ads.Advertisement {
	log.Error("store unavailable, returning no ads", "store", store, "backend", apperrors.StoreName(err), "error", err)
	e.metrics.StoreDown(store)
	e.metrics.ObserveQuery(metrics.ResultUnavailable, 0, time.Since(start))
	event.Degraded = true
	return []ads.Advertisement{}
}

func openSession[S any](cb *resilience.CircuitBreaker, open func() (S, error)) (S, error) {
	if cb == nil {
		return open()
	}
	return resilience.Call(cb, open)
}
