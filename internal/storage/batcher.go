package storage

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// BatchWriter stores several records at once.
type BatchWriter interface {
	InsertBatch(ctx context.Context, records []Record) error
}

// Batcher buffers records in front of a BatchWriter. The buffer is sent
// when it reaches Limit records or, while Run is active, every Interval.
type Batcher struct {
	w        BatchWriter
	limit    int
	interval time.Duration
	clk      clock.Clock

	mu      sync.Mutex
	pending []Record
}

// NewBatcher creates a batcher. A nil clock selects the wall clock.
func NewBatcher(w BatchWriter, limit int, interval time.Duration, clk clock.Clock) *Batcher {
	if limit <= 0 {
		limit = 1000
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Batcher{
		w:        w,
		limit:    limit,
		interval: interval,
		clk:      clk,
	}
}

// Record implements Sink.
func (b *Batcher) Record(ctx context.Context, r Record) error {
	b.mu.Lock()
	b.pending = append(b.pending, r)
	full := len(b.pending) >= b.limit
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered records.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush sends the buffered records. On error the records are dropped.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	records := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(records) == 0 {
		return nil
	}
	return b.w.InsertBatch(ctx, records)
}

// Run flushes every interval until ctx is done, then flushes once more
// with a fresh context. Flush errors are passed to onErr when it is set.
func (b *Batcher) Run(ctx context.Context, onErr func(error)) {
	ticker := b.clk.Ticker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := b.Flush(flushCtx)
			cancel()
			if err != nil && onErr != nil {
				onErr(err)
			}
			return
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
