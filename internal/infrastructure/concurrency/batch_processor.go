// Package concurrency runs the per-table fan-out without exhausting the
// replica's small connection pool.
//
// Items are split into fixed-size batches. Items inside a batch run
// concurrently; batches run in list order with a pause between them, either
// a fixed BatchDelay or one maintained by AdaptiveDelay. With
// MaxConcurrentBatches above one, up to that many batches are in flight
// together, still started in list order.
//
// Every item runs under ItemTimeout. An item that fails, panics or times
// out is replaced by the job's fallback value, so the result always has one
// entry per input item, aligned by index. Run also reports when the result
// is not trustworthy as a whole: the context ended before the fan-out
// finished, or no item succeeded.
package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// Config tunes a BatchProcessor.
type Config struct {
	BatchSize            int
	BatchDelay           time.Duration
	MaxConcurrentBatches int
	ItemTimeout          time.Duration
	Adaptive             AdaptiveConfig
}

// DefaultConfig returns the reference tuning: sequential batches of five,
// adaptive pacing and a ten second per-item ceiling.
func DefaultConfig() Config {
	return Config{
		BatchSize:            5,
		BatchDelay:           300 * time.Millisecond,
		MaxConcurrentBatches: 1,
		ItemTimeout:          10 * time.Second,
		Adaptive:             DefaultAdaptiveConfig(),
	}
}

// ErrAllFailed is returned with the fallback results when every item of a
// non-empty job failed.
var ErrAllFailed = apperrors.Unavailable(apperrors.CodeFanOutFailed, "every fan-out item failed").Build()

// BatchObserver records batch latency and item failures, for metrics.
type BatchObserver interface {
	ObserveBatch(job string, size int, d time.Duration)
	ObserveItemFailure(job string)
}

// BatchProcessor holds the pacing state shared by every fan-out.
type BatchProcessor struct {
	mu       sync.RWMutex
	cfg      Config
	adaptive *AdaptiveDelay

	logger   *zap.Logger
	observer BatchObserver
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes a BatchProcessor.
type Option func(*BatchProcessor)

// WithObserver reports batches to a metrics backend.
func WithObserver(o BatchObserver) Option {
	return func(p *BatchProcessor) { p.observer = o }
}

// WithSleeper replaces the inter-batch pause, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *BatchProcessor) { p.sleep = sleep }
}

// NewBatchProcessor creates a processor. Invalid fields fall back to
// DefaultConfig.
func NewBatchProcessor(cfg Config, logger *zap.Logger, opts ...Option) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = normalize(cfg)
	p := &BatchProcessor{
		cfg:      cfg,
		adaptive: NewAdaptiveDelay(cfg.Adaptive),
		logger:   logger.Named("fanout"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxConcurrentBatches < 1 {
		cfg.MaxConcurrentBatches = 1
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = def.ItemTimeout
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	return cfg
}

// UpdateConfig swaps the tuning. Fan-outs already running keep the values
// they started with, except for the adaptive pause which is shared.
func (p *BatchProcessor) UpdateConfig(cfg Config) {
	cfg = normalize(cfg)
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	p.adaptive.Reconfigure(cfg.Adaptive)
	p.logger.Info("Fan-out tuning updated",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("max_concurrent_batches", cfg.MaxConcurrentBatches),
		zap.Duration("item_timeout", cfg.ItemTimeout),
		zap.Bool("adaptive", cfg.Adaptive.Enabled),
	)
}

// Config returns the current tuning.
func (p *BatchProcessor) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// CurrentDelay returns the pause that will follow the next batch if its
// latency is unremarkable.
func (p *BatchProcessor) CurrentDelay() time.Duration {
	cfg := p.Config()
	if !cfg.Adaptive.Enabled {
		return cfg.BatchDelay
	}
	return p.adaptive.Current()
}

func (p *BatchProcessor) nextDelay(cfg Config, batch time.Duration) time.Duration {
	if !cfg.Adaptive.Enabled {
		return cfg.BatchDelay
	}
	return p.adaptive.Observe(batch)
}

// Job describes one fan-out.
type Job[I, T any] struct {
	// Name labels logs and metrics.
	Name  string
	Items []I
	// BatchSize overrides the processor's batch size when positive.
	BatchSize int
	Work      func(ctx context.Context, item I) (T, error)
	Fallback  func(item I, err error) T
}

// Run executes job and returns one result per item, in input order. The
// results are always complete; err is the context's error when ctx ended
// before the fan-out finished, ErrAllFailed when no item succeeded, and nil
// otherwise.
func Run[I, T any](ctx context.Context, p *BatchProcessor, job Job[I, T]) ([]T, error) {
	results := make([]T, len(job.Items))
	if len(job.Items) == 0 {
		return results, ctx.Err()
	}

	cfg := p.Config()
	size := cfg.BatchSize
	if job.BatchSize > 0 {
		size = job.BatchSize
	}
	batches := chunk(len(job.Items), size)
	start := time.Now()

	var (
		mu     sync.Mutex
		failed int
	)
	runItem := func(ctx context.Context, idx int) {
		item := job.Items[idx]
		v, err := withTimeout(ctx, cfg.ItemTimeout, item, job.Work)
		if err != nil {
			mu.Lock()
			failed++
			mu.Unlock()
			if p.observer != nil {
				p.observer.ObserveItemFailure(job.Name)
			}
			p.logger.Warn("Fan-out item failed, using fallback",
				zap.String("job", job.Name),
				zap.Any("item", item),
				zap.Error(err),
			)
			v = job.Fallback(item, err)
		}
		results[idx] = v
	}
	runBatch := func(b batch) time.Duration {
		bstart := time.Now()
		var g errgroup.Group
		for idx := b.from; idx < b.to; idx++ {
			g.Go(func() error {
				runItem(ctx, idx)
				return nil
			})
		}
		_ = g.Wait()
		d := time.Since(bstart)
		if p.observer != nil {
			p.observer.ObserveBatch(job.Name, b.to-b.from, d)
		}
		return d
	}

	if cfg.MaxConcurrentBatches <= 1 {
		for i, b := range batches {
			d := runBatch(b)
			delay := p.nextDelay(cfg, d)
			if i == len(batches)-1 {
				break
			}
			if err := p.sleep(ctx, delay); err != nil {
				abandon(batches[i+1:], job, results, err)
				break
			}
		}
	} else {
		sem := semaphore.NewWeighted(int64(cfg.MaxConcurrentBatches))
		var wg sync.WaitGroup
		for i, b := range batches {
			if err := sem.Acquire(ctx, 1); err != nil {
				abandon(batches[i:], job, results, err)
				break
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				d := runBatch(b)
				delay := p.nextDelay(cfg, d)
				if i < len(batches)-1 {
					_ = p.sleep(ctx, delay)
				}
			}()
		}
		wg.Wait()
	}

	p.logger.Debug("Fan-out complete",
		zap.String("job", job.Name),
		zap.Int("items", len(job.Items)),
		zap.Int("batches", len(batches)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return results, err
	}
	if failed == len(job.Items) {
		return results, ErrAllFailed
	}
	return results, nil
}

type batch struct{ from, to int }

func chunk(n, size int) []batch {
	out := make([]batch, 0, (n+size-1)/size)
	for from := 0; from < n; from += size {
		to := from + size
		if to > n {
			to = n
		}
		out = append(out, batch{from, to})
	}
	return out
}

// abandon fills the results of batches that never ran.
func abandon[I, T any](rest []batch, job Job[I, T], results []T, err error) {
	for _, b := range rest {
		for idx := b.from; idx < b.to; idx++ {
			results[idx] = job.Fallback(job.Items[idx], err)
		}
	}
}

// withTimeout runs work under timeout. work is raced against the deadline
// so one that ignores its context still cannot stall the batch.
func withTimeout[I, T any](ctx context.Context, timeout time.Duration, item I, work func(context.Context, I) (T, error)) (T, error) {
	var zero T
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: apperrors.Internal(apperrors.CodePanic, "fan-out item panicked").
					WithDetails(fmt.Sprint(r)).Build()}
			}
		}()
		v, err := work(ictx, item)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ictx.Done():
		select {
		case o := <-done:
			return o.v, o.err
		default:
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, apperrors.Timeout(apperrors.CodeQueryTimeout, "fan-out item timed out").
			WithDetails(timeout.String()).
			WithCause(ictx.Err()).
			Build()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
