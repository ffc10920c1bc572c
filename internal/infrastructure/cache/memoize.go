package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// ErrDoNotCache lets a wrapped function hand its result to the caller
// without it being stored. Return it, or an error wrapping it, alongside
// the result.
var ErrDoNotCache = errors.New("cache: result not stored")

// Func is a cacheable lookup.
type Func[A, R any] func(ctx context.Context, args A) (R, error)

// Options control how a memoized result is stored.
type Options struct {
	TTL       time.Duration
	Version   string
	Namespace string
	// DisableCoalescing lets concurrent misses on one key each call the
	// wrapped function. By default they share a single in-flight call.
	DisableCoalescing bool
}

func (o Options) ns() string {
	if o.Namespace == "" {
		return DefaultNamespace
	}
	return o.Namespace
}

func (o Options) setOptions() []SetOption {
	opts := []SetOption{InNamespace(o.ns())}
	if o.TTL > 0 {
		opts = append(opts, WithTTL(o.TTL))
	}
	if o.Version != "" {
		opts = append(opts, WithVersion(o.Version))
	}
	return opts
}

// WithCache wraps fn so that a result is computed at most once per key per
// TTL window. Errors are returned to the caller and never cached.
//
// Coalesced misses share one call of fn that runs detached from any single
// caller's cancellation; a caller whose context ends stops waiting and gets
// its context error while the shared call completes for the others.
func WithCache[A, R any](fn Func[A, R], store *Store, keyFn func(A) string, opts Options) Func[A, R] {
	var group singleflight.Group
	ns := opts.ns()

	load := func(ctx context.Context, args A, key string) (R, error) {
		result, err := fn(ctx, args)
		if errors.Is(err, ErrDoNotCache) {
			return result, nil
		}
		if err != nil {
			return result, err
		}
		store.Set(key, result, opts.setOptions()...)
		return result, nil
	}

	return func(ctx context.Context, args A) (R, error) {
		key := keyFn(args)
		if v, ok := GetAs[R](store, key, ns); ok {
			return v, nil
		}
		if opts.DisableCoalescing {
			return load(ctx, args, key)
		}

		ch := group.DoChan(Qualify(ns, key), func() (v any, err error) {
			// DoChan cannot hand a panic back to the waiting callers.
			defer func() {
				if r := recover(); r != nil {
					err = apperrors.Internal(apperrors.CodePanic, "cached call panicked").
						WithResource(key).
						WithCause(fmt.Errorf("panic: %v", r)).
						Build()
				}
			}()
			return load(context.WithoutCancel(ctx), args, key)
		})
		select {
		case res := <-ch:
			r, _ := res.Val.(R)
			return r, res.Err
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		}
	}
}

// CacheResult memoizes fn under keys derived from fnName and the argument
// value, so argument shape is part of the key.
func CacheResult[A, R any](fn Func[A, R], store *Store, fnName string, opts Options) Func[A, R] {
	return WithCache(fn, store, func(args A) string { return ArgsKey(fnName, args) }, opts)
}

// ArgsKey builds a deterministic key from a function name and its
// arguments. Structs, maps and slices are JSON-encoded; everything else is
// formatted with fmt.
func ArgsKey(fnName string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, fnName)
	for _, a := range args {
		parts = append(parts, stringify(a))
	}
	return strings.Join(parts, ":")
}

func stringify(v any) string {
	if v == nil {
		return "null"
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	}
	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// InvalidatePattern deletes every entry whose qualified key contains
// substr and returns the number removed.
func InvalidatePattern(store *Store, substr string) int {
	if substr == "" {
		return 0
	}
	return store.DeleteFunc(func(key, _ string) bool { return strings.Contains(key, substr) })
}

// InvalidateRegexp deletes every entry whose qualified key matches re.
func InvalidateRegexp(store *Store, re *regexp.Regexp) int {
	if re == nil {
		return 0
	}
	return store.DeleteFunc(func(key, _ string) bool { return re.MatchString(key) })
}

const warmParallelism = 4

// WarmResult summarizes a WarmCache run.
type WarmResult struct {
	Loaded int
	Failed map[string]error
}

// WarmCache fetches and stores every key, best effort. Individual fetch
// failures are logged and reported but never abort the run.
func WarmCache[R any](
	ctx context.Context,
	store *Store,
	keys []string,
	fetch func(ctx context.Context, key string) (R, error),
	opts Options,
	logger *zap.Logger,
) WarmResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		mu  sync.Mutex
		res = WarmResult{Failed: make(map[string]error)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmParallelism)
	for _, key := range keys {
		g.Go(func() error {
			v, err := fetch(gctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[key] = err
				logger.Warn("Cache warm fetch failed", zap.String("key", key), zap.Error(err))
				return nil
			}
			store.Set(key, v, opts.setOptions()...)
			res.Loaded++
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Cache warmed",
		zap.String("namespace", opts.ns()),
		zap.Int("loaded", res.Loaded),
		zap.Int("failed", len(res.Failed)),
	)
	return res
}
