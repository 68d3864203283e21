// Package index implements the keyword -> ad id inverted index on Redis,
// on an embedded Badger database, and in process memory. All three append
// on Put and return ids in insertion order without deduplication.
package index

import (
	"context"
	"strconv"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
)

// Memory is an in-process index for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]string
}

var _ ads.IndexStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]string)}
}

func (m *Memory) Open(ctx context.Context) (ads.IndexSession, error) {
	return memorySession{m}, nil
}

// Keywords returns the number of distinct keywords indexed.
func (m *Memory) Keywords() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

type memorySession struct {
	m *Memory
}

func (s memorySession) Put(ctx context.Context, keyword string, adID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.entries[keyword] = append(s.m.entries[keyword], strconv.FormatInt(adID, 10))
	return nil
}

func (s memorySession) Get(ctx context.Context, keyword string) ([]string, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	ids := make([]string, len(s.m.entries[keyword]))
	copy(ids, s.m.entries[keyword])
	return ids, nil
}

func (s memorySession) Close() error { return nil }
