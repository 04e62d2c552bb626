package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ifl-de/intake-api/internal/core/ports"
	"github.com/ifl-de/intake-api/internal/pkg/metrics"
)

const (
	defaultWorkers  = 4
	channelBuffer   = 256
	defaultGrace    = time.Hour
	defaultAttempts = 3
	retryBackoff    = 500 * time.Millisecond
)

// Reaper removes blobs that have no metadata record. Keys arrive through
// Enqueue from failed submissions and deletes, and from periodic sweeps of
// the blob store. A key is only removed after its metadata is confirmed
// absent, so a late commit keeps its blob.
type Reaper struct {
	workers  []chan string
	docs     ports.DocumentRepository
	blobs    ports.BlobStore
	grace    time.Duration
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewReaper creates a Reaper with numWorkers sharded workers. Blobs younger
// than grace are ignored by sweeps. Non-positive values fall back to the
// defaults.
func NewReaper(numWorkers int, grace time.Duration, docs ports.DocumentRepository, blobs ports.BlobStore, log zerolog.Logger) *Reaper {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if grace <= 0 {
		grace = defaultGrace
	}
	r := &Reaper{
		workers:  make([]chan string, numWorkers),
		docs:     docs,
		blobs:    blobs,
		grace:    grace,
		attempts: defaultAttempts,
		backoff:  retryBackoff,
		log:      log,
		now:      time.Now,
	}
	for i := range r.workers {
		r.workers[i] = make(chan string, channelBuffer)
	}
	return r
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	for i, ch := range r.workers {
		r.wg.Add(1)
		go r.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (r *Reaper) Wait() {
	r.wg.Wait()
}

// Enqueue hands key to the worker responsible for it. It never blocks: when
// the worker is saturated the key is dropped and left for the next sweep.
func (r *Reaper) Enqueue(key string) {
	if key == "" {
		return
	}
	idx := r.shardIndex(key)
	select {
	case r.workers[idx] <- key:
		metrics.OrphanQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(r.workers[idx])))
	default:
		r.log.Warn().Str("storage_key", key).Int("worker_id", idx).Msg("reaper queue full, key left for sweep")
	}
}

// Sweep lists blobs older than the grace period and enqueues those without
// metadata. It returns the number of keys enqueued.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	start := r.now()
	blobs, err := r.blobs.List(ctx, start.Add(-r.grace))
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, b := range blobs {
		exists, err := r.docs.ExistsByStorageKey(ctx, b.Key)
		if err != nil {
			return enqueued, err
		}
		if exists {
			continue
		}
		r.Enqueue(b.Key)
		enqueued++
	}

	r.log.Info().
		Int("scanned", len(blobs)).
		Int("enqueued", enqueued).
		Dur("duration", time.Since(start)).
		Msg("orphan sweep complete")
	return enqueued, nil
}

// RunSweeper sweeps once immediately and then every interval until ctx is
// cancelled.
func (r *Reaper) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("orphan sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// shardIndex maps a storage key deterministically to a worker index.
func (r *Reaper) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(r.workers)))
}

func (r *Reaper) runWorker(ctx context.Context, id int, ch <-chan string) {
	defer r.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-ch:
			metrics.OrphanQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			result := r.reap(ctx, key)
			metrics.OrphansReapedTotal.WithLabelValues(result).Inc()
			if result == "failed" {
				r.log.Error().Str("storage_key", key).Int("worker_id", id).Msg("orphan blob could not be removed")
			}
		}
	}
}

// reap removes key unless a metadata record still references it.
func (r *Reaper) reap(ctx context.Context, key string) string {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		exists, err := r.docs.ExistsByStorageKey(ctx, key)
		if err == nil && exists {
			return "kept"
		}
		if err == nil {
			if err = r.blobs.Delete(ctx, key); err == nil {
				r.log.Debug().Str("storage_key", key).Msg("orphan blob removed")
				return "removed"
			}
		}

		r.log.Warn().Err(err).Str("storage_key", key).Int("attempt", attempt).Msg("orphan reap attempt failed")
		select {
		case <-ctx.Done():
			return "failed"
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
	return "failed"
}
