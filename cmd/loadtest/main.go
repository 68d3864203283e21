package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	endpointSelect = "select"
	endpointLookup = "lookup"
)

var defaultQueries = []string{
	"red shoes",
	"running shoes",
	"leather handbag",
	"wireless headphones",
	"smart watch",
	"coffee maker",
	"gaming laptop",
	"winter jacket",
	"yoga mat",
	"office chair",
	"kids toys",
	"garden hose",
	"phone case",
	"camping tent",
	"",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	// LookupRatio is the share of requests that fetch a previously
	// returned ad by id instead of selecting.
	LookupRatio float64
}

// endpointStats aggregates one endpoint's outcomes.
type endpointStats struct {
	mu          sync.Mutex
	requests    int64
	errors      int64
	latencies   []time.Duration
	statusCodes map[int]int64
}

func (e *endpointStats) record(d time.Duration, status int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	if err != nil {
		e.errors++
		return
	}
	if status < 200 || status >= 300 {
		e.errors++
	}
	e.latencies = append(e.latencies, d)
	e.statusCodes[status]++
}

type Stats struct {
	endpoints   map[string]*endpointStats
	zeroResults atomic.Int64
	adsServed   atomic.Int64

	// seenIDs feeds lookups with ids the service actually returned.
	seenMu  sync.Mutex
	seenIDs []int64
}

func NewStats() *Stats {
	s := &Stats{endpoints: make(map[string]*endpointStats)}
	for _, name := range []string{endpointSelect, endpointLookup} {
		s.endpoints[name] = &endpointStats{
			latencies:   make([]time.Duration, 0, 50000),
			statusCodes: make(map[int]int64),
		}
	}
	return s
}

func (s *Stats) rememberIDs(ids []int64) {
	if len(ids) == 0 {
		return
	}
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if len(s.seenIDs) < 1000 {
		s.seenIDs = append(s.seenIDs, ids...)
	}
}

func (s *Stats) randomID() (int64, bool) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if len(s.seenIDs) == 0 {
		return 0, false
	}
	return s.seenIDs[rand.IntN(len(s.seenIDs))], true
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the ad search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file with one query per line (defaults to a built-in list)")
	lookupRatio := flag.Float64("lookup-ratio", 0.2, "share of requests that look up a returned ad by id")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     queries,
		LookupRatio: *lookupRatio,
	}

	fmt.Println("=== Ad Search Load Test ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.Concurrency)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Queries:      %d unique\n", len(cfg.Queries))
	fmt.Printf("Lookup ratio: %.2f\n", cfg.LookupRatio)

	if err := preflight(cfg.BaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "service not ready: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

// readQueries loads one query per line. Blank lines are kept since an
// empty query is a valid request.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		queries = append(queries, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return queries, nil
}

// preflight checks that ingestion has produced a report before load starts.
func preflight(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/ingestion/report")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingestion report returned %d", resp.StatusCode)
	}
	var report struct {
		Accepted int `json:"accepted"`
		Skipped  int `json:"skipped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decoding ingestion report: %w", err)
	}
	fmt.Printf("Catalog:      %d ads accepted, %d skipped\n", report.Accepted, report.Skipped)
	return nil
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Submit blocks once every worker is busy, which paces the producer loop.
	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating worker pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Release()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	for i := 0; ctx.Err() == nil; i++ {
		select {
		case <-progress.C:
			fmt.Print(".")
		default:
		}

		task := selectTask(ctx, client, cfg.BaseURL, cfg.Queries[i%len(cfg.Queries)], stats)
		if id, ok := stats.randomID(); ok && rand.Float64() < cfg.LookupRatio {
			task = lookupTask(ctx, client, cfg.BaseURL, id, stats)
		}
		wg.Add(1)
		if err := pool.Submit(func() { defer wg.Done(); task() }); err != nil {
			wg.Done()
			stats.endpoints[endpointSelect].record(0, 0, err)
		}
	}

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func selectTask(ctx context.Context, client *http.Client, baseURL, query string, stats *Stats) func() {
	return func() {
		target := fmt.Sprintf("%s/api/v1/ads?q=%s", baseURL, url.QueryEscape(query))
		var body struct {
			Count int `json:"count"`
			Ads   []struct {
				AdID int64 `json:"ad_id"`
			} `json:"ads"`
		}
		status, ok := do(ctx, client, target, &body, stats.endpoints[endpointSelect])
		if !ok || status != http.StatusOK {
			return
		}
		if body.Count == 0 {
			stats.zeroResults.Add(1)
			return
		}
		stats.adsServed.Add(int64(body.Count))
		ids := make([]int64, 0, len(body.Ads))
		for _, ad := range body.Ads {
			ids = append(ids, ad.AdID)
		}
		stats.rememberIDs(ids)
	}
}

func lookupTask(ctx context.Context, client *http.Client, baseURL string, id int64, stats *Stats) func() {
	return func() {
		do(ctx, client, fmt.Sprintf("%s/api/v1/ads/%d", baseURL, id), nil, stats.endpoints[endpointLookup])
	}
}

// do issues one GET, decodes a 200 body into out when given, and records
// the outcome. Requests cut off by the end of the run are not counted.
func do(ctx context.Context, client *http.Client, target string, out any, es *endpointStats) (int, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		es.record(0, 0, err)
		return 0, false
	}
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			es.record(elapsed, 0, err)
		}
		return 0, false
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			es.record(elapsed, resp.StatusCode, err)
			return resp.StatusCode, false
		}
	}
	io.Copy(io.Discard, resp.Body)
	es.record(elapsed, resp.StatusCode, nil)
	return resp.StatusCode, true
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	var total int64
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Zero-result selects: %d\n", stats.zeroResults.Load())
	fmt.Fprintf(w, "Ads served:          %d\n", stats.adsServed.Load())

	for _, name := range []string{endpointSelect, endpointLookup} {
		es := stats.endpoints[name]
		es.mu.Lock()
		latencies := append([]time.Duration(nil), es.latencies...)
		requests, errs := es.requests, es.errors
		codes := make([]int, 0, len(es.statusCodes))
		for code := range es.statusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		counts := make([]int64, len(codes))
		for i, code := range codes {
			counts[i] = es.statusCodes[code]
		}
		es.mu.Unlock()

		total += requests
		fmt.Fprintln(w)
		fmt.Fprintf(w, "=== %s ===\n", name)
		fmt.Fprintf(w, "Requests:     %d\n", requests)
		if requests == 0 {
			continue
		}
		fmt.Fprintf(w, "Errors:       %d (%.2f%%)\n", errs, float64(errs)/float64(requests)*100)
		fmt.Fprintf(w, "Requests/sec: %.2f\n", float64(requests)/duration.Seconds())
		if len(latencies) > 0 {
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			fmt.Fprintf(w, "Latency:      min %s  p50 %s  p95 %s  p99 %s  max %s\n",
				latencies[0],
				percentile(latencies, 50),
				percentile(latencies, 95),
				percentile(latencies, 99),
				latencies[len(latencies)-1],
			)
		}
		for i, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, counts[i])
		}
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
