package analytics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/kafka"
)

// AggregatedStats is the in-process analytics snapshot served over HTTP.
type AggregatedStats struct {
	TotalQueries      int64       `json:"total_queries"`
	ZeroResultCount   int64       `json:"zero_result_count"`
	DegradedCount     int64       `json:"degraded_count"`
	AdsServed         int64       `json:"ads_served"`
	IngestionRuns     int64       `json:"ingestion_runs"`
	AdsIngested       int64       `json:"ads_ingested"`
	AvgLatencyMs      float64     `json:"avg_latency_ms"`
	P50LatencyMs      int64       `json:"p50_latency_ms"`
	P95LatencyMs      int64       `json:"p95_latency_ms"`
	P99LatencyMs      int64       `json:"p99_latency_ms"`
	TopKeywords       []TermCount `json:"top_keywords"`
	ZeroResultQueries []TermCount `json:"zero_result_queries"`
	TopAds            []AdCount   `json:"top_ads"`
	QueriesPerMinute  float64     `json:"queries_per_minute"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

type AdCount struct {
	AdID  int64 `json:"ad_id"`
	Count int64 `json:"count"`
}

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// Aggregator keeps running totals of the events it is published. It is the
// Publisher used when Kafka is disabled, and runs alongside Kafka otherwise.
type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      atomic.Int64
	zeroResults       atomic.Int64
	degraded          atomic.Int64
	adsServed         atomic.Int64
	ingestionRuns     atomic.Int64
	adsIngested       atomic.Int64
	latencies         []int64
	next              int
	keywordCounts     map[string]int64
	zeroResultQueries map[string]int64
	adCounts          map[int64]int64
	startTime         time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		keywordCounts:     make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		adCounts:          make(map[int64]int64),
		startTime:         time.Now(),
	}
}

var _ Publisher = (*Aggregator)(nil)

func (a *Aggregator) Publish(ctx context.Context, events ...kafka.Event) error {
	for _, e := range events {
		switch ev := e.Value.(type) {
		case AdQueryEvent:
			a.recordQuery(ev)
		case IngestionEvent:
			a.ingestionRuns.Add(1)
			a.adsIngested.Add(int64(ev.Accepted))
		}
	}
	return nil
}

func (a *Aggregator) recordQuery(event AdQueryEvent) {
	a.totalQueries.Add(1)
	a.adsServed.Add(int64(event.Returned))
	if event.Degraded {
		a.degraded.Add(1)
	}
	if event.Returned == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	for _, kw := range event.Keywords {
		a.keywordCounts[kw]++
	}
	for _, id := range event.AdIDs {
		a.adCounts[id]++
	}
	if event.Returned == 0 && !event.Degraded {
		a.zeroResultQueries[event.Query]++
	}
}

// DefaultTop is how many keywords, ads and zero-result queries Stats ranks.
const DefaultTop = 10

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(DefaultTop)
}

// StatsTop is Stats with the ranked lists cut to n entries.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:    a.totalQueries.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		DegradedCount:   a.degraded.Load(),
		AdsServed:       a.adsServed.Load(),
		IngestionRuns:   a.ingestionRuns.Load(),
		AdsIngested:     a.adsIngested.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopKeywords = topTerms(a.keywordCounts, n)
	stats.ZeroResultQueries = topTerms(a.zeroResultQueries, n)
	stats.TopAds = topAds(a.adCounts, n)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Ties break on the term so output is stable.
func topTerms(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func topAds(counts map[int64]int64, n int) []AdCount {
	result := make([]AdCount, 0, len(counts))
	for id, count := range counts {
		result = append(result, AdCount{AdID: id, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].AdID < result[j].AdID
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
