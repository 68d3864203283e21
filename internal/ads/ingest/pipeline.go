// Package ingest loads advertisements from a record source into the catalog
// and the keyword index in one sequential pass.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/parser"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/metrics"
)

// maxFailures caps how many failures a Report keeps in detail.
const maxFailures = 1000

// Failure describes one record that did not make it into both stores.
type Failure struct {
	Position int    `json:"position"`
	Field    string `json:"field,omitempty"`
	Reason   string `json:"reason"`
}

// Report summarises a run. Every record the source yields is counted as
// either Accepted or Skipped.
type Report struct {
	RunID           uuid.UUID     `json:"run_id"`
	Accepted        int           `json:"accepted"`
	Skipped         int           `json:"skipped"`
	Postings        int           `json:"postings"`
	Failures        []Failure     `json:"failures"`
	FailuresOmitted int           `json:"failures_omitted,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

func (r *Report) fail(f Failure) {
	r.Skipped++
	if len(r.Failures) >= maxFailures {
		r.FailuresOmitted++
		return
	}
	r.Failures = append(r.Failures, f)
}

// Pipeline is the ingestion pass. It is not safe for concurrent Runs; the
// engine runs it once.
type Pipeline struct {
	index   ads.IndexStore
	catalog ads.CatalogStore
	metrics *metrics.Metrics
	tracker analytics.Tracker
	logger  *slog.Logger
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracker(t analytics.Tracker) Option {
	return func(p *Pipeline) { p.tracker = t }
}

func New(index ads.IndexStore, catalog ads.CatalogStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		index:   index,
		catalog: catalog,
		tracker: analytics.Discard,
		logger:  slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes src to the end. Bad records and failed store writes are
// recorded in the report and the run continues. Run returns an error only
// when a store session cannot be opened or the source itself fails; the
// report then reflects the records handled before that point.
func (p *Pipeline) Run(ctx context.Context, src ads.RecordSource) (*Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		Failures:  []Failure{},
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With("run_id", report.RunID.String())
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	catalog, err := p.catalog.Open(ctx)
	if err != nil {
		logger.Error("catalog unavailable, ingestion skipped", "error", err)
		return report, fmt.Errorf("opening catalog: %w", err)
	}
	defer catalog.Close()

	index, err := p.index.Open(ctx)
	if err != nil {
		logger.Error("index unavailable, ingestion skipped", "error", err)
		return report, fmt.Errorf("opening index: %w", err)
	}
	defer index.Close()

	logger.Info("ingestion started")
	for position := 0; ; position++ {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var recErr *ads.RecordError
		if errors.As(err, &recErr) {
			logger.Debug("undecodable record skipped", "position", recErr.Position, "error", recErr.Err)
			report.fail(Failure{Position: recErr.Position, Reason: recErr.Err.Error()})
			continue
		}
		if err != nil {
			logger.Error("record source failed", "position", position, "error", err)
			p.finish(logger, report)
			return report, fmt.Errorf("reading record %d: %w", position, err)
		}

		p.ingestRecord(ctx, logger, catalog, index, rec, position, report)
	}

	p.finish(logger, report)
	return report, nil
}

func (p *Pipeline) ingestRecord(
	ctx context.Context,
	logger *slog.Logger,
	catalog ads.CatalogSession,
	index ads.IndexSession,
	rec ads.RawRecord,
	position int,
	report *Report,
) {
	ad, err := parser.Parse(rec, position)
	if err != nil {
		var verr *parser.ValidationError
		if errors.As(err, &verr) {
			logger.Debug("invalid record skipped", "position", position, "field", verr.Field, "reason", verr.Reason)
			report.fail(Failure{Position: position, Field: verr.Field, Reason: verr.Reason})
			return
		}
		report.fail(Failure{Position: position, Reason: err.Error()})
		return
	}

	if err := catalog.Insert(ctx, ad); err != nil {
		logger.Warn("catalog insert failed", "position", position, "ad_id", ad.AdID, "error", err)
		report.fail(Failure{Position: position, Reason: err.Error()})
		return
	}

	// A failed keyword does not stop the remaining keywords of the same ad.
	var indexErrs []error
	for _, kw := range ad.Keywords {
		if err := index.Put(ctx, kw, ad.AdID); err != nil {
			indexErrs = append(indexErrs, fmt.Errorf("keyword %q: %w", kw, err))
			continue
		}
		report.Postings++
	}
	if len(indexErrs) > 0 {
		err := errors.Join(indexErrs...)
		logger.Warn("index write failed", "position", position, "ad_id", ad.AdID, "error", err)
		report.fail(Failure{Position: position, Field: "keywords", Reason: err.Error()})
		return
	}
	report.Accepted++
}

func (p *Pipeline) finish(logger *slog.Logger, report *Report) {
	elapsed := time.Since(report.StartedAt)
	p.metrics.ObserveIngest(report.Accepted, report.Skipped, report.Postings, elapsed)
	p.tracker.Track(analytics.IngestionEvent{
		Type:       analytics.EventIngestion,
		RunID:      report.RunID.String(),
		Accepted:   report.Accepted,
		Skipped:    report.Skipped,
		Postings:   report.Postings,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
	logger.Info("ingestion finished",
		"accepted", report.Accepted,
		"skipped", report.Skipped,
		"postings", report.Postings,
		"duration_ms", elapsed.Milliseconds(),
	)
}
