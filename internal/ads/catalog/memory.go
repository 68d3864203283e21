package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
)

// ErrDuplicateAd is returned by the in-memory catalog for a repeated ad id,
// matching the primary-key violation the SQL catalog reports.
var ErrDuplicateAd = errors.New("duplicate ad id")

// Memory is an in-process catalog for tests and single-node development.
type Memory struct {
	mu  sync.RWMutex
	ads map[int64]ads.Advertisement
}

var _ ads.CatalogStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{ads: make(map[int64]ads.Advertisement)}
}

func (m *Memory) Open(ctx context.Context) (ads.CatalogSession, error) {
	return memorySession{m}, nil
}

// Len returns the number of stored ads.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ads)
}

type memorySession struct {
	m *Memory
}

func (s memorySession) Insert(ctx context.Context, ad *ads.Advertisement) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, exists := s.m.ads[ad.AdID]; exists {
		return fmt.Errorf("inserting ad %d: %w", ad.AdID, ErrDuplicateAd)
	}
	stored := *ad
	stored.Keywords = append([]string{}, ad.Keywords...)
	s.m.ads[ad.AdID] = stored
	return nil
}

func (s memorySession) GetByID(ctx context.Context, adID int64) (*ads.Advertisement, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	ad, ok := s.m.ads[adID]
	if !ok {
		return nil, fmt.Errorf("ad %d: %w", adID, apperrors.ErrAdNotFound)
	}
	ad.Keywords = append([]string{}, ad.Keywords...)
	return &ad, nil
}

func (s memorySession) Close() error { return nil }
