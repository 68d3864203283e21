package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/adstest"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/catalog"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/index"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/ingest"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/source"
)

var benchTitles = []string{
	"Red Running Shoes",
	"Blue Leather Handbag",
	"Wireless Noise Cancelling Headphones",
	"Red Winter Jacket",
	"Stainless Steel Coffee Maker",
}

func benchEngine(b *testing.B, n int, opts ...Option) *Engine {
	b.Helper()
	records := make([]ads.RawRecord, n)
	for i := range records {
		records[i] = adstest.Ad(int64(i+1), int64(i%50), benchTitles[i%len(benchTitles)])
	}
	idx, cat := index.NewMemory(), catalog.NewMemory()
	if _, err := ingest.New(idx, cat).Run(context.Background(), source.FromSlice(records)); err != nil {
		b.Fatal(err)
	}
	return New(idx, cat, opts...)
}

// BenchmarkSelectAds measures one query over a growing catalog. "red"
// matches two in five ads.
func BenchmarkSelectAds(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		e := benchEngine(b, n)
		b.Run(fmt.Sprintf("ads_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = e.SelectAds(context.Background(), "red shoes")
			}
		})
	}
}

func BenchmarkSelectAdsDeduped(b *testing.B) {
	e := benchEngine(b, 1000, WithDedupe(true))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.SelectAds(context.Background(), "red shoes")
	}
}

func BenchmarkSelectAdsParallel(b *testing.B) {
	e := benchEngine(b, 1000, WithMaxConcurrent(64))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = e.SelectAds(context.Background(), "wireless headphones")
		}
	})
}
