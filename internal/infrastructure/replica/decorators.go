package replica

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/breaker"
)

// ===== CIRCUIT BREAKER =====

// BreakerExecutor rejects statements while the replica circuit is open.
type BreakerExecutor struct {
	inner   Executor
	breaker *breaker.CircuitBreaker
}

func NewBreakerExecutor(inner Executor, cb *breaker.CircuitBreaker) *BreakerExecutor {
	return &BreakerExecutor{inner: inner, breaker: cb}
}

func (e *BreakerExecutor) Query(ctx context.Context, stmt Statement) (any, error) {
	return breaker.Do(e.breaker, func() (any, error) {
		return e.inner.Query(ctx, stmt)
	})
}

// ===== RETRY =====

// RetryConfig controls retries of known transient driver errors.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	// Patterns are matched against the error message. Only matching
	// errors are retried.
	Patterns []string
}

// DefaultRetryConfig retries the driver's queue-full error.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Second,
		Patterns:   []string{"Queue limit"},
	}
}

// RetryExecutor retries statements that fail with a message matching one
// of the configured patterns, waiting a fixed delay between attempts.
type RetryExecutor struct {
	inner  Executor
	config RetryConfig
	logger *zap.Logger
}

func NewRetryExecutor(inner Executor, cfg RetryConfig, logger *zap.Logger) *RetryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryExecutor{inner: inner, config: cfg, logger: logger.Named("retry")}
}

func (e *RetryExecutor) Query(ctx context.Context, stmt Statement) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		result, err := e.inner.Query(ctx, stmt)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("Query succeeded after retry",
					zap.String("table", stmt.Table),
					zap.Int("attempt", attempt+1),
				)
			}
			return result, nil
		}
		if !e.retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == e.config.MaxRetries {
			break
		}

		e.logger.Warn("Retrying query",
			zap.String("table", stmt.Table),
			zap.String("kind", stmt.Kind),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", e.config.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-time.After(e.config.RetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("retry of %s interrupted: %w", stmt.Table, ctx.Err())
		}
	}

	return nil, apperrors.Transient(apperrors.CodeQueueLimit, "query kept failing with a retryable error").
		WithResource(stmt.Table).
		WithDetails(fmt.Sprintf("%d attempts", e.config.MaxRetries+1)).
		WithCause(lastErr).
		Build()
}

func (e *RetryExecutor) retryable(err error) bool {
	msg := err.Error()
	for _, p := range e.config.Patterns {
		if p != "" && strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ===== TRACING =====

// TracingExecutor opens a span per statement.
type TracingExecutor struct {
	inner  Executor
	tracer trace.Tracer
}

func NewTracingExecutor(inner Executor) *TracingExecutor {
	return &TracingExecutor{inner: inner, tracer: otel.Tracer("leads-analytics/replica")}
}

func (e *TracingExecutor) Query(ctx context.Context, stmt Statement) (any, error) {
	ctx, span := e.tracer.Start(ctx, "replica."+stmt.Kind,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mysql"),
			attribute.String("db.sql.table", stmt.Table),
			attribute.String("db.statement", stmt.SQL),
		),
	)
	defer span.End()

	result, err := e.inner.Query(ctx, stmt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// ===== METRICS =====

// QueryObserver records the outcome and latency of statements.
type QueryObserver interface {
	ObserveQuery(kind, outcome string, d time.Duration)
}

// InstrumentedExecutor reports every statement to a QueryObserver.
type InstrumentedExecutor struct {
	inner    Executor
	observer QueryObserver
}

func NewInstrumentedExecutor(inner Executor, observer QueryObserver) *InstrumentedExecutor {
	return &InstrumentedExecutor{inner: inner, observer: observer}
}

func (e *InstrumentedExecutor) Query(ctx context.Context, stmt Statement) (any, error) {
	start := time.Now()
	result, err := e.inner.Query(ctx, stmt)
	e.observer.ObserveQuery(stmt.Kind, outcome(err), time.Since(start))
	return result, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case ctxErr(err):
		return "timeout"
	default:
		return "error"
	}
}

func ctxErr(err error) bool {
	return apperrors.Is(err, context.DeadlineExceeded) || apperrors.Is(err, context.Canceled)
}

// Chain assembles the production decorator stack around base. A nil
// observer or breaker skips that layer.
func Chain(base Executor, cb *breaker.CircuitBreaker, retry RetryConfig, observer QueryObserver, logger *zap.Logger) Executor {
	var e Executor = base
	if observer != nil {
		e = NewInstrumentedExecutor(e, observer)
	}
	e = NewTracingExecutor(e)
	e = NewRetryExecutor(e, retry, logger)
	if cb != nil {
		e = NewBreakerExecutor(e, cb)
	}
	return e
}
