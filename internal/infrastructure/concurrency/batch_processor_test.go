package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type tableCount struct {
	Table string
	Count int64
}

func tables(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("gb_table_%02d", i)
	}
	return out
}

func zeroCount(table string, _ error) tableCount { return tableCount{Table: table} }

func TestRunFaultIsolation(t *testing.T) {
	rec := &sleepRecorder{}
	p := NewBatchProcessor(Config{BatchSize: 3, ItemTimeout: time.Second}, zap.NewNop(), WithSleeper(rec.sleep))
	items := tables(7)
	const bad = 4

	got, err := Run(context.Background(), p, Job[string, tableCount]{
		Name:  "counts",
		Items: items,
		Work: func(_ context.Context, table string) (tableCount, error) {
			if table == items[bad] {
				return tableCount{}, errors.New("Table doesn't exist")
			}
			return tableCount{Table: table, Count: int64(len(table) * 10)}, nil
		},
		Fallback: zeroCount,
	})
	require.NoError(t, err)

	require.Len(t, got, len(items))
	for i, tc := range got {
		assert.Equal(t, items[i], tc.Table)
		if i == bad {
			assert.Zero(t, tc.Count)
		} else {
			assert.Equal(t, int64(110), tc.Count)
		}
	}
	// Three batches, no pause after the last one.
	assert.Len(t, rec.recorded(), 2)
}

func TestRunEmpty(t *testing.T) {
	p := NewBatchProcessor(DefaultConfig(), nil)
	got, err := Run(context.Background(), p, Job[string, tableCount]{
		Items:    nil,
		Work:     func(context.Context, string) (tableCount, error) { panic("not called") },
		Fallback: zeroCount,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunSequentialBatchOrder(t *testing.T) {
	rec := &sleepRecorder{}
	p := NewBatchProcessor(Config{BatchSize: 2, ItemTimeout: time.Second}, zap.NewNop(), WithSleeper(rec.sleep))
	items := tables(6)

	var (
		mu     sync.Mutex
		events []string
	)
	Run(context.Background(), p, Job[string, int]{
		Items: items,
		Work: func(_ context.Context, table string) (int, error) {
			mu.Lock()
			events = append(events, "start:"+table)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			events = append(events, "end:"+table)
			mu.Unlock()
			return 1, nil
		},
		Fallback: func(string, error) int { return 0 },
	})

	pos := func(e string) int {
		for i, ev := range events {
			if ev == e {
				return i
			}
		}
		t.Fatalf("event %s missing", e)
		return -1
	}
	for b := 0; b < 2; b++ {
		for _, done := range items[b*2 : b*2+2] {
			for _, next := range items[(b+1)*2 : (b+1)*2+2] {
				assert.Less(t, pos("end:"+done), pos("start:"+next),
					"%s must finish before %s starts", done, next)
			}
		}
	}
}

func maxInFlight(t *testing.T, cfg Config, n int) int32 {
	t.Helper()
	rec := &sleepRecorder{}
	p := NewBatchProcessor(cfg, zap.NewNop(), WithSleeper(rec.sleep))
	var inFlight, peak int32
	Run(context.Background(), p, Job[string, int]{
		Items: tables(n),
		Work: func(context.Context, string) (int, error) {
			cur := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return 1, nil
		},
		Fallback: func(string, error) int { return 0 },
	})
	return atomic.LoadInt32(&peak)
}

func TestRunBoundedParallelBatches(t *testing.T) {
	assert.Equal(t, int32(1), maxInFlight(t, Config{BatchSize: 1, MaxConcurrentBatches: 1, ItemTimeout: time.Second}, 6))
	assert.Equal(t, int32(2), maxInFlight(t, Config{BatchSize: 1, MaxConcurrentBatches: 2, ItemTimeout: time.Second}, 6))
	assert.LessOrEqual(t, maxInFlight(t, Config{BatchSize: 2, MaxConcurrentBatches: 2, ItemTimeout: time.Second}, 8), int32(4))
}

func TestRunParallelKeepsAlignment(t *testing.T) {
	p := NewBatchProcessor(Config{BatchSize: 2, MaxConcurrentBatches: 3, ItemTimeout: time.Second}, nil,
		WithSleeper((&sleepRecorder{}).sleep))
	items := tables(9)
	got, err := Run(context.Background(), p, Job[string, string]{
		Items:    items,
		Work:     func(_ context.Context, s string) (string, error) { return s + "!", nil },
		Fallback: func(s string, _ error) string { return "" },
	})
	require.NoError(t, err)
	for i, s := range got {
		assert.Equal(t, items[i]+"!", s)
	}
}

func TestRunItemTimeout(t *testing.T) {
	p := NewBatchProcessor(Config{BatchSize: 5, ItemTimeout: 20 * time.Millisecond}, nil)
	hang := make(chan struct{})
	defer close(hang)

	var fallbackErr error
	start := time.Now()
	got, err := Run(context.Background(), p, Job[string, tableCount]{
		Items: []string{"hung", "ok"},
		Work: func(_ context.Context, table string) (tableCount, error) {
			if table == "hung" {
				<-hang // ignores its context
			}
			return tableCount{Table: table, Count: 1}, nil
		},
		Fallback: func(table string, err error) tableCount {
			fallbackErr = err
			return tableCount{Table: table}
		},
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []tableCount{{Table: "hung"}, {Table: "ok", Count: 1}}, got)
	require.Error(t, fallbackErr)
	assert.True(t, apperrors.IsTimeout(fallbackErr))
	assert.ErrorIs(t, fallbackErr, context.DeadlineExceeded)
}

func TestRunRecoversPanics(t *testing.T) {
	p := NewBatchProcessor(Config{BatchSize: 2, ItemTimeout: time.Second}, nil)
	got, err := Run(context.Background(), p, Job[string, int]{
		Items: []string{"a", "b"},
		Work: func(_ context.Context, s string) (int, error) {
			if s == "a" {
				panic("driver bug")
			}
			return 2, nil
		},
		Fallback: func(string, error) int { return -1 },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 2}, got)
}

func TestRunCancelledContextFillsFallbacks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewBatchProcessor(Config{BatchSize: 1, BatchDelay: time.Hour, ItemTimeout: time.Second}, nil,
		WithSleeper(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}))

	var calls int32
	got, err := Run(ctx, p, Job[string, int]{
		Items: tables(4),
		Work: func(context.Context, string) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 1, nil
		},
		Fallback: func(string, error) int { return 0 },
	})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int{1, 0, 0, 0}, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunPacing(t *testing.T) {
	t.Run("fixed delay", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := NewBatchProcessor(Config{BatchSize: 1, BatchDelay: 300 * time.Millisecond, ItemTimeout: time.Second},
			nil, WithSleeper(rec.sleep))
		Run(context.Background(), p, Job[string, int]{
			Items:    tables(4),
			Work:     func(context.Context, string) (int, error) { return 1, nil },
			Fallback: func(string, error) int { return 0 },
		})
		assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}, rec.recorded())
	})

	t.Run("adaptive speeds up fast batches to the floor", func(t *testing.T) {
		rec := &sleepRecorder{}
		adaptive := DefaultAdaptiveConfig()
		p := NewBatchProcessor(Config{BatchSize: 1, ItemTimeout: time.Second, Adaptive: adaptive},
			nil, WithSleeper(rec.sleep))
		Run(context.Background(), p, Job[string, int]{
			Items:    tables(3),
			Work:     func(context.Context, string) (int, error) { return 1, nil },
			Fallback: func(string, error) int { return 0 },
		})
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, rec.recorded())
		assert.Equal(t, 100*time.Millisecond, p.CurrentDelay())
	})

	t.Run("adaptive slows down after slow batches", func(t *testing.T) {
		rec := &sleepRecorder{}
		adaptive := DefaultAdaptiveConfig()
		adaptive.SlowThreshold = 5 * time.Millisecond
		adaptive.FastThreshold = time.Millisecond
		p := NewBatchProcessor(Config{BatchSize: 1, ItemTimeout: time.Second, Adaptive: adaptive},
			nil, WithSleeper(rec.sleep))
		Run(context.Background(), p, Job[string, int]{
			Items: tables(3),
			Work: func(context.Context, string) (int, error) {
				time.Sleep(10 * time.Millisecond)
				return 1, nil
			},
			Fallback: func(string, error) int { return 0 },
		})
		assert.Equal(t, []time.Duration{200 * time.Millisecond, 300 * time.Millisecond}, rec.recorded())
	})
}

func TestUpdateConfig(t *testing.T) {
	p := NewBatchProcessor(DefaultConfig(), nil)
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	cfg.Adaptive.Enabled = false
	cfg.BatchDelay = 50 * time.Millisecond
	p.UpdateConfig(cfg)

	assert.Equal(t, 1, p.Config().BatchSize)
	assert.Equal(t, 50*time.Millisecond, p.CurrentDelay())

	p.UpdateConfig(Config{})
	assert.Equal(t, DefaultConfig().BatchSize, p.Config().BatchSize)
	assert.Equal(t, 1, p.Config().MaxConcurrentBatches)
}

type batchLog struct {
	mu       sync.Mutex
	batches  int
	failures int
}

func (b *batchLog) ObserveBatch(string, int, time.Duration) { b.mu.Lock(); b.batches++; b.mu.Unlock() }
func (b *batchLog) ObserveItemFailure(string)               { b.mu.Lock(); b.failures++; b.mu.Unlock() }

func TestObserver(t *testing.T) {
	obs := &batchLog{}
	p := NewBatchProcessor(Config{BatchSize: 2, ItemTimeout: time.Second}, nil,
		WithObserver(obs), WithSleeper((&sleepRecorder{}).sleep))
	Run(context.Background(), p, Job[string, int]{
		Name:  "counts",
		Items: tables(5),
		Work: func(_ context.Context, s string) (int, error) {
			if s == "gb_table_00" {
				return 0, errors.New("boom")
			}
			return 1, nil
		},
		Fallback: func(string, error) int { return 0 },
	})
	assert.Equal(t, 3, obs.batches)
	assert.Equal(t, 1, obs.failures)
}

func TestRunReportsTotalFailure(t *testing.T) {
	p := NewBatchProcessor(Config{BatchSize: 2, ItemTimeout: time.Second}, nil,
		WithSleeper((&sleepRecorder{}).sleep))
	got, err := Run(context.Background(), p, Job[string, tableCount]{
		Items: tables(3),
		Work: func(context.Context, string) (tableCount, error) {
			return tableCount{}, errors.New("circuit breaker is open")
		},
		Fallback: zeroCount,
	})

	require.Len(t, got, 3)
	assert.ErrorIs(t, err, ErrAllFailed)
	assert.True(t, apperrors.IsUnavailable(err))
	for i, tc := range got {
		assert.Equal(t, tableCount{Table: tables(3)[i]}, tc)
	}
}

func TestRunAlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewBatchProcessor(Config{BatchSize: 2, ItemTimeout: time.Second}, nil,
		WithSleeper((&sleepRecorder{}).sleep))

	got, err := Run(ctx, p, Job[string, tableCount]{
		Items: tables(2),
		Work: func(ctx context.Context, table string) (tableCount, error) {
			if err := ctx.Err(); err != nil {
				return tableCount{}, err
			}
			return tableCount{Table: table, Count: 1000}, nil
		},
		Fallback: zeroCount,
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []tableCount{{Table: "gb_table_00"}, {Table: "gb_table_01"}}, got)
}
