package replica

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/breaker"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"gb_men_x_tamil", "GB_KETO_HINDI", "leads2024", "t$1", "a"}
	for _, name := range valid {
		assert.NoError(t, ValidateIdentifier(name), name)
	}

	invalid := []string{
		"",
		"leads; DROP TABLE clients",
		"leads`",
		"db.leads",
		"leads--",
		"naïve",
		"a b",
		string(make([]byte, 65)),
	}
	for _, name := range invalid {
		err := ValidateIdentifier(name)
		require.Error(t, err, name)
		assert.True(t, apperrors.IsValidation(err))
	}
}

func TestStatements(t *testing.T) {
	stmt, err := CountStatement("gb_keto_hindi")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS count FROM `gb_keto_hindi`", stmt.SQL)
	assert.Equal(t, KindCount, stmt.Kind)
	assert.Empty(t, stmt.Args)

	stmt, err = RangeCountStatement("gb_keto_hindi", "created_at_ts", int64(10), int64(20))
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) AS count FROM `gb_keto_hindi` WHERE `created_at_ts` >= ? AND `created_at_ts` < ?",
		stmt.SQL)
	assert.Equal(t, []any{int64(10), int64(20)}, stmt.Args)

	stmt, err = TableSizeStatement("", "gb_keto_hindi")
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "table_schema = DATABASE()")
	assert.Equal(t, []any{"gb_keto_hindi"}, stmt.Args)

	stmt, err = TableSizeStatement("leads", "gb_keto_hindi")
	require.NoError(t, err)
	assert.Equal(t, []any{"leads", "gb_keto_hindi"}, stmt.Args)

	_, err = CountStatement("x; DROP")
	assert.Error(t, err)
	_, err = RangeCountStatement("ok", "bad col", 0, 1)
	assert.Error(t, err)
	_, err = TableSizeStatement("bad schema", "ok")
	assert.Error(t, err)
}

type scriptedExecutor struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedExecutor) Query(_ context.Context, _ Statement) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []map[string]any{{"count": int64(1)}}, nil
}

func retryConfig(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, RetryDelay: time.Millisecond, Patterns: []string{"Queue limit"}}
}

func TestRetryExecutor(t *testing.T) {
	queueErr := errors.New("Error: Queue limit reached")
	stmt := Statement{Kind: KindCount, Table: "gb_keto_hindi"}

	t.Run("recovers after matching errors", func(t *testing.T) {
		inner := &scriptedExecutor{errs: []error{queueErr, queueErr}}
		e := NewRetryExecutor(inner, retryConfig(3), zap.NewNop())
		res, err := e.Query(context.Background(), stmt)
		require.NoError(t, err)
		assert.Equal(t, int64(1), ExtractCount(res))
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		inner := &scriptedExecutor{errs: []error{queueErr, queueErr, queueErr, queueErr, queueErr}}
		e := NewRetryExecutor(inner, retryConfig(2), zap.NewNop())
		_, err := e.Query(context.Background(), stmt)
		require.Error(t, err)
		assert.ErrorIs(t, err, queueErr)
		assert.Equal(t, apperrors.KindTransient, apperrors.KindOf(err))
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		other := errors.New("Table 'leads.gb_missing' doesn't exist")
		inner := &scriptedExecutor{errs: []error{other}}
		e := NewRetryExecutor(inner, retryConfig(3), zap.NewNop())
		_, err := e.Query(context.Background(), stmt)
		assert.Equal(t, other, err)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("stops waiting when the context ends", func(t *testing.T) {
		inner := &scriptedExecutor{errs: []error{queueErr, queueErr}}
		cfg := retryConfig(3)
		cfg.RetryDelay = time.Hour
		e := NewRetryExecutor(inner, cfg, zap.NewNop())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := e.Query(ctx, stmt)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, inner.calls)
	})
}

type observed struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *observed) ObserveQuery(kind, outcome string, _ time.Duration) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, kind+":"+outcome)
	o.mu.Unlock()
}

func TestChainCountsOneBreakerFailurePerCall(t *testing.T) {
	queueErr := errors.New("Queue limit")
	inner := &scriptedExecutor{}
	for i := 0; i < 20; i++ {
		inner.errs = append(inner.errs, queueErr)
	}
	cb := breaker.New(breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Minute}, zap.NewNop())
	obs := &observed{}
	e := Chain(inner, cb, retryConfig(2), obs, zap.NewNop())
	stmt := Statement{Kind: KindCount, Table: "gb_keto_hindi"}

	_, err := e.Query(context.Background(), stmt)
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, breaker.StateClosed, cb.State())

	_, err = e.Query(context.Background(), stmt)
	require.Error(t, err)
	assert.Equal(t, breaker.StateOpen, cb.State())

	_, err = e.Query(context.Background(), stmt)
	assert.True(t, breaker.IsOpen(err))
	assert.Equal(t, 6, inner.calls)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Len(t, obs.outcomes, 6)
	assert.Equal(t, "count:error", obs.outcomes[0])
}

func TestInstrumentedExecutorOutcomes(t *testing.T) {
	obs := &observed{}
	e := NewInstrumentedExecutor(ExecutorFunc(func(ctx context.Context, _ Statement) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), obs)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_, err := e.Query(ctx, Statement{Kind: KindRangeCount})
	assert.Error(t, err)
	assert.Equal(t, []string{"range_count:timeout"}, obs.outcomes)
}
