// Package adstest provides record builders and fault-injecting store
// wrappers for tests of the ingestion and query paths.
package adstest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
)

// ErrInjected is returned by the fault-injecting wrappers.
var ErrInjected = errors.New("injected failure")

// Fields builds a RawRecord in the array-wrapped source format: every value
// is wrapped in a one-element array. A nil value is written as JSON null.
func Fields(fields map[string]any) ads.RawRecord {
	rec := make(ads.RawRecord, len(fields))
	for k, v := range fields {
		b, err := json.Marshal([]any{v})
		if err != nil {
			panic(fmt.Sprintf("adstest: encoding %s: %v", k, err))
		}
		rec[k] = b
	}
	return rec
}

// Ad builds a valid record with the required fields and a title.
func Ad(adID, campaignID int64, title string) ads.RawRecord {
	return Fields(map[string]any{
		"ad_id":       adID,
		"campaign_id": campaignID,
		"title":       title,
	})
}

// UnavailableIndex fails every Open with ErrStoreUnavailable.
type UnavailableIndex struct{}

func (UnavailableIndex) Open(context.Context) (ads.IndexSession, error) {
	return nil, apperrors.Unavailable("index", ErrInjected)
}

// UnavailableCatalog fails every Open with ErrStoreUnavailable.
type UnavailableCatalog struct{}

func (UnavailableCatalog) Open(context.Context) (ads.CatalogSession, error) {
	return nil, apperrors.Unavailable("catalog", ErrInjected)
}

// Index wraps an IndexStore, counting sessions and failing chosen keywords.
type Index struct {
	ads.IndexStore

	mu      sync.Mutex
	failPut map[string]bool
	failGet map[string]bool

	opened atomic.Int64
	closed atomic.Int64
}

func NewIndex(inner ads.IndexStore) *Index {
	return &Index{
		IndexStore: inner,
		failPut:    make(map[string]bool),
		failGet:    make(map[string]bool),
	}
}

// FailPut makes Put fail for keyword.
func (x *Index) FailPut(keyword string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.failPut[keyword] = true
}

// FailGet makes Get fail for keyword.
func (x *Index) FailGet(keyword string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.failGet[keyword] = true
}

// Sessions returns how many sessions were opened and closed.
func (x *Index) Sessions() (opened, closed int64) {
	return x.opened.Load(), x.closed.Load()
}

func (x *Index) Open(ctx context.Context) (ads.IndexSession, error) {
	inner, err := x.IndexStore.Open(ctx)
	if err != nil {
		return nil, err
	}
	x.opened.Add(1)
	return &indexSession{IndexSession: inner, store: x}, nil
}

type indexSession struct {
	ads.IndexSession
	store *Index
}

func (s *indexSession) Put(ctx context.Context, keyword string, adID int64) error {
	s.store.mu.Lock()
	fail := s.store.failPut[keyword]
	s.store.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return s.IndexSession.Put(ctx, keyword, adID)
}

func (s *indexSession) Get(ctx context.Context, keyword string) ([]string, error) {
	s.store.mu.Lock()
	fail := s.store.failGet[keyword]
	s.store.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return s.IndexSession.Get(ctx, keyword)
}

func (s *indexSession) Close() error {
	s.store.closed.Add(1)
	return s.IndexSession.Close()
}

// Catalog wraps a CatalogStore, counting sessions and failing chosen ids.
type Catalog struct {
	ads.CatalogStore

	mu         sync.Mutex
	failInsert map[int64]bool
	failGet    map[int64]bool

	opened atomic.Int64
	closed atomic.Int64
}

func NewCatalog(inner ads.CatalogStore) *Catalog {
	return &Catalog{
		CatalogStore: inner,
		failInsert:   make(map[int64]bool),
		failGet:      make(map[int64]bool),
	}
}

func (c *Catalog) FailInsert(adID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failInsert[adID] = true
}

func (c *Catalog) FailGet(adID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failGet[adID] = true
}

func (c *Catalog) Sessions() (opened, closed int64) {
	return c.opened.Load(), c.closed.Load()
}

func (c *Catalog) Open(ctx context.Context) (ads.CatalogSession, error) {
	inner, err := c.CatalogStore.Open(ctx)
	if err != nil {
		return nil, err
	}
	c.opened.Add(1)
	return &catalogSession{CatalogSession: inner, store: c}, nil
}

type catalogSession struct {
	ads.CatalogSession
	store *Catalog
}

func (s *catalogSession) Insert(ctx context.Context, ad *ads.Advertisement) error {
	s.store.mu.Lock()
	fail := s.store.failInsert[ad.AdID]
	s.store.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return s.CatalogSession.Insert(ctx, ad)
}

func (s *catalogSession) GetByID(ctx context.Context, adID int64) (*ads.Advertisement, error) {
	s.store.mu.Lock()
	fail := s.store.failGet[adID]
	s.store.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return s.CatalogSession.GetByID(ctx, adID)
}

func (s *catalogSession) Close() error {
	s.store.closed.Add(1)
	return s.CatalogSession.Close()
}
