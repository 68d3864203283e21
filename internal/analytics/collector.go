package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/kafka"
)

// Publisher delivers events. *kafka.Producer and *Aggregator implement it.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Tracker is what the query engine and ingestion pipeline depend on. A nil
// Tracker is never passed; use Discard.
type Tracker interface {
	Track(event any)
}

type discard struct{}

func (discard) Track(any) {}

// Discard drops every event.
var Discard Tracker = discard{}

const maxBatch = 100

// Collector buffers events and publishes them from a single goroutine so
// Track never blocks the query path. When the buffer is full the event is
// dropped and counted.
type Collector struct {
	publishers []Publisher
	eventCh    chan any
	logger     *slog.Logger
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	closed     bool
	started    atomic.Bool
	dropped    atomic.Int64
}

func NewCollector(bufferSize int, publishers ...Publisher) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publishers: publishers,
		eventCh:    make(chan any, bufferSize),
		logger:     slog.Default().With("component", "analytics-collector"),
		done:       make(chan struct{}),
	}
}

// Start launches the publish loop. It runs until Close.
func (c *Collector) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		for event := range c.eventCh {
			c.publish(c.drain(event))
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"publishers", len(c.publishers),
	)
}

func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events, publishes what is buffered, and waits for
// the loop to exit or ctx to end.
func (c *Collector) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.eventCh)
		c.mu.Unlock()
	})
	if !c.started.Load() {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// drain batches first with whatever else is already buffered, up to
// maxBatch events, so a backlog goes out in a few writes.
func (c *Collector) drain(first any) []kafka.Event {
	batch := []kafka.Event{{Key: key(first), Value: first}}
	for len(batch) < maxBatch {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, kafka.Event{Key: key(event), Value: event})
		default:
			return batch
		}
	}
	return batch
}

func (c *Collector) publish(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, p := range c.publishers {
		if err := p.Publish(ctx, batch...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	}
}
