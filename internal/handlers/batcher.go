package handlers

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"annotator/internal/logging"
	"annotator/internal/metrics"
	"annotator/internal/prefetch"
	"annotator/internal/sidecar"
	"annotator/internal/workers"

	"golang.org/x/sync/errgroup"
)

// SaveFunc persists labels for one item.
type SaveFunc func(ctx context.Context, item string, labels []sidecar.Label) (*prefetch.CacheEntry, error)

// SaveResult reports the outcome of one flushed save.
type SaveResult struct {
	Item  string               `json:"item"`
	Entry *prefetch.CacheEntry `json:"entry,omitempty"`
	Error string               `json:"error,omitempty"`
	err   error
}

// Err returns the save error, if any.
func (r SaveResult) Err() error { return r.err }

// SaveBatcher collects label saves per item and writes them after a quiet
// period: every Queue restarts the timer, and a later save for the same item
// replaces the earlier one. Flush writes immediately.
type SaveBatcher struct {
	save  SaveFunc
	delay time.Duration
	log   *logging.Scoped

	mu      sync.Mutex
	pending map[string][]sidecar.Label
	timer   *time.Timer
	closed  bool
	// failed holds the last failed result per item until a later write of
	// that item succeeds.
	failed map[string]SaveResult

	// flushMu keeps flushes in order so a newer batch never lands before an
	// older one for the same item.
	flushMu sync.Mutex
}

// NewSaveBatcher returns a batcher that calls save after delay.
func NewSaveBatcher(save SaveFunc, delay time.Duration, log *logging.Scoped) *SaveBatcher {
	return &SaveBatcher{
		save:    save,
		delay:   delay,
		log:     log,
		pending: make(map[string][]sidecar.Label),
		failed:  make(map[string]SaveResult),
	}
}

// Queue records labels for item and restarts the flush timer.
func (b *SaveBatcher) Queue(item string, labels []sidecar.Label) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return prefetch.ErrSessionClosed
	}
	b.pending[item] = slices.Clone(labels)

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, func() {
		b.Flush(context.Background(), "timer")
	})
	return nil
}

// Pending returns the number of items waiting to be written.
func (b *SaveBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Failures returns the items whose most recent write failed, ordered by item
// name.
func (b *SaveBatcher) Failures() []SaveResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]SaveResult, 0, len(b.failed))
	for _, r := range b.failed {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Flush writes every queued save now. Results are ordered by item name.
func (b *SaveBatcher) Flush(ctx context.Context, trigger string) []SaveResult {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	batch := b.pending
	b.pending = make(map[string][]sidecar.Label)
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	metrics.SaveBatchFlushesTotal.WithLabelValues(trigger).Inc()

	items := make([]string, 0, len(batch))
	for item := range batch {
		items = append(items, item)
	}
	sort.Strings(items)

	results := make([]SaveResult, len(items))
	var g errgroup.Group
	g.SetLimit(workers.ForBatch(len(items), 0))
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			entry, err := b.save(ctx, item, batch[item])
			results[i] = SaveResult{Item: item, Entry: entry, err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	b.mu.Lock()
	for _, r := range results {
		if r.err != nil {
			failed++
			b.failed[r.Item] = r
		} else {
			delete(b.failed, r.Item)
		}
	}
	b.mu.Unlock()
	if failed > 0 {
		b.log.Warn("Flushed %d label saves (%s), %d failed", len(results), trigger, failed)
	} else {
		b.log.Debug("Flushed %d label saves (%s)", len(results), trigger)
	}
	return results
}

// Close flushes what is queued and rejects further saves.
func (b *SaveBatcher) Close(ctx context.Context) []SaveResult {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.Flush(ctx, "close")
}
