package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/adstest"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/catalog"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/index"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/ingest"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/source"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/tracing"
)

// seeded returns stores holding ads 7 "Red Shoes", 8 "Blue Shoes" and
// 9 "Red Hat", loaded through the ingestion pipeline.
func seeded(t *testing.T) (*adstest.Index, *adstest.Catalog) {
	t.Helper()
	idx := adstest.NewIndex(index.NewMemory())
	cat := adstest.NewCatalog(catalog.NewMemory())
	report, err := ingest.New(idx, cat).Run(context.Background(), source.FromSlice([]ads.RawRecord{
		adstest.Ad(7, 1, "Red Shoes"),
		adstest.Ad(8, 1, "Blue Shoes"),
		adstest.Ad(9, 2, "Red Hat"),
	}))
	require.NoError(t, err)
	require.Equal(t, 3, report.Accepted)
	return idx, cat
}

func adIDs(result []ads.Advertisement) []int64 {
	ids := make([]int64, len(result))
	for i, ad := range result {
		ids[i] = ad.AdID
	}
	return ids
}

func TestSelectAdsSingleKeyword(t *testing.T) {
	idx, cat := seeded(t)
	result := New(idx, cat).SelectAds(context.Background(), "red")
	assert.Equal(t, []int64{7, 9}, adIDs(result))
	assert.Equal(t, "Red Shoes", result[0].Title)
	assert.Equal(t, ads.DefaultPrice, result[0].Price)
}

func TestSelectAdsKeepsDuplicatesInTokenOrder(t *testing.T) {
	idx, cat := seeded(t)
	result := New(idx, cat).SelectAds(context.Background(), "red shoes")
	assert.Equal(t, []int64{7, 9, 7, 8}, adIDs(result))

	result = New(idx, cat).SelectAds(context.Background(), "SHOES, red!")
	assert.Equal(t, []int64{7, 8, 7, 9}, adIDs(result))
}

func TestSelectAdsDuplicateSlotsAreIndependent(t *testing.T) {
	idx, cat := seeded(t)
	result := New(idx, cat).SelectAds(context.Background(), "red shoes")
	require.Equal(t, []int64{7, 9, 7, 8}, adIDs(result))

	result[0].Keywords[0] = "changed"
	result[0].Title = "changed"
	assert.Equal(t, []string{"red", "shoes"}, result[2].Keywords)
	assert.Equal(t, "Red Shoes", result[2].Title)
}

func TestSelectAdsRepeatedQueryToken(t *testing.T) {
	idx, cat := seeded(t)
	result := New(idx, cat).SelectAds(context.Background(), "hat hat")
	assert.Equal(t, []int64{9, 9}, adIDs(result))
}

func TestSelectAdsDedupe(t *testing.T) {
	idx, cat := seeded(t)
	result := New(idx, cat, WithDedupe(true)).SelectAds(context.Background(), "red shoes")
	assert.Equal(t, []int64{7, 9, 8}, adIDs(result))
}

func TestSelectAdsEmptyQuery(t *testing.T) {
	idx, cat := seeded(t)
	e := New(idx, cat)
	for _, q := range []string{"", "   ", "?!,."} {
		result := e.SelectAds(context.Background(), q)
		assert.NotNil(t, result)
		assert.Empty(t, result, "query %q", q)
	}
	opened, _ := idx.Sessions()
	assert.Equal(t, int64(1), opened, "only the seeding run opened a session")
}

func TestSelectAdsUnknownKeyword(t *testing.T) {
	idx, cat := seeded(t)
	result := New(idx, cat).SelectAds(context.Background(), "purple red")
	assert.Equal(t, []int64{7, 9}, adIDs(result))

	result = New(idx, cat).SelectAds(context.Background(), "purple")
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestSelectAdsStoreUnavailable(t *testing.T) {
	idx, cat := seeded(t)

	result := New(adstest.UnavailableIndex{}, cat).SelectAds(context.Background(), "red")
	assert.NotNil(t, result)
	assert.Empty(t, result)

	result = New(idx, adstest.UnavailableCatalog{}).SelectAds(context.Background(), "red")
	assert.Empty(t, result)

	opened, closed := idx.Sessions()
	assert.Equal(t, opened, closed, "index session released when the catalog is down")
}

func TestSelectAdsLookupMissDropsSlot(t *testing.T) {
	idx, cat := seeded(t)
	cat.FailGet(7)

	result := New(idx, cat).SelectAds(context.Background(), "red shoes")
	assert.Equal(t, []int64{9, 8}, adIDs(result))
}

func TestSelectAdsIndexedButMissingFromCatalog(t *testing.T) {
	idx, cat := seeded(t)
	sess, err := idx.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Put(context.Background(), "red", 404))
	require.NoError(t, sess.Close())

	result := New(idx, cat).SelectAds(context.Background(), "red")
	assert.Equal(t, []int64{7, 9}, adIDs(result))
}

func TestSelectAdsKeywordLookupFailureSkipsToken(t *testing.T) {
	idx, cat := seeded(t)
	idx.FailGet("red")

	result := New(idx, cat).SelectAds(context.Background(), "red shoes")
	assert.Equal(t, []int64{7, 8}, adIDs(result))
}

func TestSelectAdsReleasesSessions(t *testing.T) {
	idx, cat := seeded(t)
	e := New(idx, cat, WithMaxConcurrent(2))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, e.SelectAds(context.Background(), "red shoes"), 4)
		}()
	}
	wg.Wait()

	opened, closed := idx.Sessions()
	assert.Equal(t, int64(21), opened)
	assert.Equal(t, opened, closed)
	opened, closed = cat.Sessions()
	assert.Equal(t, opened, closed)
}

func TestSelectAdsNotAdmittedWhenContextDone(t *testing.T) {
	idx, cat := seeded(t)
	e := New(idx, cat, WithMaxConcurrent(1))
	require.NoError(t, e.slots.Acquire(context.Background(), 1))
	defer e.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Empty(t, e.SelectAds(ctx, "red"))
}

func TestSelectAdsBreakerOpens(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	_, cat := seeded(t)
	e := New(adstest.UnavailableIndex{}, cat,
		WithMetrics(m),
		WithBreakers(config.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}),
	)

	for i := 0; i < 3; i++ {
		assert.Empty(t, e.SelectAds(context.Background(), "red"))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("index")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AdQueriesTotal.WithLabelValues(metrics.ResultUnavailable)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StoreUnavailable.WithLabelValues("index")))
}

func TestSelectAdsTracksEvent(t *testing.T) {
	idx, cat := seeded(t)
	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(8, agg)
	collector.Start()

	e := New(idx, cat, WithTracker(collector), WithTracer(tracing.New(true)))
	e.SelectAds(context.Background(), "red shoes")
	e.SelectAds(context.Background(), "purple")
	require.NoError(t, collector.Close(context.Background()))

	stats := agg.Stats()
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(4), stats.AdsServed)
	assert.Equal(t, []analytics.TermCount{{Term: "purple", Count: 1}}, stats.ZeroResultQueries)
}

func TestLookup(t *testing.T) {
	idx, cat := seeded(t)
	e := New(idx, cat)

	ad, err := e.Lookup(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Red Hat", ad.Title)

	_, err = e.Lookup(context.Background(), 404)
	assert.ErrorIs(t, err, apperrors.ErrAdNotFound)

	_, err = New(idx, adstest.UnavailableCatalog{}).Lookup(context.Background(), 9)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}
