// Package cache implements the in-process, namespaced TTL store that sits
// in front of the read replica, plus the memoization helpers built on it.
//
// Every key is qualified as "namespace:rawKey". Each namespace carries its
// own size cap, default TTL and hit/miss counters. Expiry is lazy: an entry
// whose age has reached its TTL is dropped on the read that finds it. A
// background sweep reclaims memory for entries nobody reads again, but no
// read result ever depends on it.
//
// When a namespace reaches its cap the oldest fifth of its entries is
// evicted in one batch. This is deliberately coarse; namespaces hold at most
// a few hundred aggregates.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// DefaultNamespace holds keys set without an explicit namespace.
const DefaultNamespace = "default"

const evictFraction = 0.2

// NamespaceConfig bounds one namespace.
type NamespaceConfig struct {
	MaxSize int
	TTL     time.Duration
}

// Config configures a Store. Namespaces not listed are created on first
// Set with DefaultMaxSize and DefaultTTL.
type Config struct {
	DefaultTTL     time.Duration
	DefaultMaxSize int
	SweepInterval  time.Duration
	Namespaces     map[string]NamespaceConfig
}

type entry struct {
	key       string
	data      any
	timestamp time.Time
	seq       uint64
	ttl       time.Duration
	version   string
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) >= e.ttl
}

type namespace struct {
	name    string
	maxSize int
	ttl     time.Duration
	entries map[string]*entry
	hits    int64
	misses  int64
}

// Store is a namespaced TTL cache. It is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	namespaces map[string]*namespace
	seq        uint64

	defaultTTL     time.Duration
	defaultMaxSize int
	sweepInterval  time.Duration

	now      func() time.Time
	recorder Recorder
	logger   *zap.Logger

	startOnce sync.Once
	closeOnce sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRecorder reports cache traffic to a metrics backend.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewStore validates cfg and builds a Store. Misconfiguration is a
// programmer error and is returned rather than corrected.
func NewStore(cfg Config, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTTL <= 0 {
		return nil, invalid("default TTL must be positive, got %s", cfg.DefaultTTL)
	}
	if cfg.DefaultMaxSize <= 0 {
		return nil, invalid("default max size must be positive, got %d", cfg.DefaultMaxSize)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	s := &Store{
		namespaces:     make(map[string]*namespace),
		defaultTTL:     cfg.DefaultTTL,
		defaultMaxSize: cfg.DefaultMaxSize,
		sweepInterval:  cfg.SweepInterval,
		now:            time.Now,
		recorder:       nopRecorder{},
		logger:         logger.Named("cache"),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for name, nc := range cfg.Namespaces {
		if err := validNamespace(name); err != nil {
			return nil, err
		}
		if nc.MaxSize <= 0 || nc.TTL <= 0 {
			return nil, invalid("namespace %q needs a positive max size and TTL", name)
		}
		s.namespaces[name] = newNamespace(name, nc.MaxSize, nc.TTL)
	}
	if _, ok := s.namespaces[DefaultNamespace]; !ok {
		s.namespaces[DefaultNamespace] = newNamespace(DefaultNamespace, s.defaultMaxSize, s.defaultTTL)
	}
	return s, nil
}

func newNamespace(name string, maxSize int, ttl time.Duration) *namespace {
	return &namespace{name: name, maxSize: maxSize, ttl: ttl, entries: make(map[string]*entry)}
}

func validNamespace(name string) error {
	if name == "" || strings.Contains(name, ":") {
		return invalid("namespace %q must be non-empty and must not contain ':'", name)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return apperrors.Config(apperrors.CodeInvalidConfig, "invalid cache configuration").
		WithDetails(fmt.Sprintf(format, args...)).Build()
}

// Qualify returns the namespace-qualified form of key.
func Qualify(namespace, key string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":" + key
}

// SetOption customizes a single Set.
type SetOption func(*setOptions)

type setOptions struct {
	ttl       time.Duration
	version   string
	namespace string
}

// WithTTL overrides the namespace TTL for one entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithVersion tags the entry for InvalidateByVersion.
func WithVersion(version string) SetOption {
	return func(o *setOptions) { o.version = version }
}

// InNamespace stores the entry in the given namespace.
func InNamespace(namespace string) SetOption {
	return func(o *setOptions) { o.namespace = namespace }
}

// Set stores data under key, replacing any previous entry.
func (s *Store) Set(key string, data any, opts ...SetOption) {
	o := setOptions{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namespace == "" {
		o.namespace = DefaultNamespace
	}
	if strings.Contains(o.namespace, ":") {
		s.logger.Warn("Rejected cache set with invalid namespace", zap.String("namespace", o.namespace))
		return
	}

	s.mu.Lock()
	ns := s.namespaceLocked(o.namespace)
	ttl := o.ttl
	if ttl <= 0 {
		ttl = ns.ttl
	}
	s.seq++
	qk := Qualify(ns.name, key)
	ns.entries[qk] = &entry{
		key:       qk,
		data:      data,
		timestamp: s.now(),
		seq:       s.seq,
		ttl:       ttl,
		version:   o.version,
	}
	evicted := 0
	if len(ns.entries) >= ns.maxSize {
		evicted = s.evictLocked(ns, qk)
	}
	size := len(ns.entries)
	s.mu.Unlock()

	if evicted > 0 {
		s.recorder.Evicted(ns.name, evicted)
		s.logger.Debug("Evicted oldest cache entries",
			zap.String("namespace", ns.name),
			zap.Int("evicted", evicted),
			zap.Int("size", size),
		)
	}
	s.recorder.Size(ns.name, size)
}

// evictLocked removes the oldest fifth of ns, never the entry just set.
func (s *Store) evictLocked(ns *namespace, keep string) int {
	victims := make([]*entry, 0, len(ns.entries))
	for k, e := range ns.entries {
		if k != keep {
			victims = append(victims, e)
		}
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if !a.timestamp.Equal(b.timestamp) {
			return a.timestamp.Before(b.timestamp)
		}
		return a.seq < b.seq
	})

	n := int(float64(len(ns.entries)) * evictFraction)
	if n < 1 {
		n = 1
	}
	if n > len(victims) {
		n = len(victims)
	}
	for _, e := range victims[:n] {
		delete(ns.entries, e.key)
	}
	return n
}

func (s *Store) namespaceLocked(name string) *namespace {
	ns, ok := s.namespaces[name]
	if !ok {
		ns = newNamespace(name, s.defaultMaxSize, s.defaultTTL)
		s.namespaces[name] = ns
	}
	return ns
}

// Get returns the live value under key. A missing or expired entry is a
// miss; an expired entry is deleted. A namespace seen for the first time is
// created so its miss is counted.
func (s *Store) Get(key, namespace string) (any, bool) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if strings.Contains(namespace, ":") {
		s.recorder.Miss(namespace)
		return nil, false
	}
	qk := Qualify(namespace, key)

	s.mu.Lock()
	ns := s.namespaceLocked(namespace)
	e, ok := ns.entries[qk]
	if ok && e.expired(s.now()) {
		delete(ns.entries, qk)
		ok = false
	}
	if !ok {
		ns.misses++
		s.mu.Unlock()
		s.recorder.Miss(namespace)
		return nil, false
	}
	ns.hits++
	data := e.data
	s.mu.Unlock()

	s.recorder.Hit(namespace)
	return data, true
}

// GetAs is Get with a type assertion. A value of another type is a miss.
func GetAs[T any](s *Store, key, namespace string) (T, bool) {
	var zero T
	v, ok := s.Get(key, namespace)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Has reports whether key holds a live entry. It does not count as a hit
// or a miss, but it does drop an expired entry.
func (s *Store) Has(key, namespace string) bool {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	qk := Qualify(namespace, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		return false
	}
	e, ok := ns.entries[qk]
	if !ok {
		return false
	}
	if e.expired(s.now()) {
		delete(ns.entries, qk)
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (s *Store) Delete(key, namespace string) bool {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	qk := Qualify(namespace, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		return false
	}
	if _, ok := ns.entries[qk]; !ok {
		return false
	}
	delete(ns.entries, qk)
	return true
}

// Clear empties one namespace, or all of them when namespace is "", and
// resets the affected statistics.
func (s *Store) Clear(namespace string) {
	s.mu.Lock()
	removed := 0
	for name, ns := range s.namespaces {
		if namespace != "" && name != namespace {
			continue
		}
		removed += len(ns.entries)
		ns.entries = make(map[string]*entry)
		ns.hits, ns.misses = 0, 0
	}
	s.mu.Unlock()

	s.logger.Info("Cache cleared",
		zap.String("namespace", namespace),
		zap.Int("removed", removed),
	)
}

// InvalidateByVersion removes every entry tagged with version.
func (s *Store) InvalidateByVersion(version string) int {
	if version == "" {
		return 0
	}
	return s.DeleteFunc(func(_ string, v string) bool { return v == version })
}

// DeleteFunc removes every entry for which match returns true. match
// receives the qualified key and the entry's version tag.
func (s *Store) DeleteFunc(match func(qualifiedKey, version string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ns := range s.namespaces {
		for k, e := range ns.entries {
			if match(k, e.version) {
				delete(ns.entries, k)
				n++
			}
		}
	}
	return n
}

// Keys returns the qualified keys of all live entries.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	keys := make([]string, 0)
	for _, ns := range s.namespaces {
		for k, e := range ns.entries {
			if !e.expired(now) {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Namespaces returns the known namespace names, sorted.
func (s *Store) Namespaces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the background sweep. It runs until ctx is done or Close
// is called.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.sweepLoop(ctx)
	})
}

// Close stops the sweep and waits for it to exit.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.stopCh) })
	started := true
	s.startOnce.Do(func() {
		started = false
		close(s.done)
	})
	if started {
		<-s.done
	}
}

func (s *Store) sweepLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

// Sweep drops every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	sizes := make(map[string]int, len(s.namespaces))
	for name, ns := range s.namespaces {
		for k, e := range ns.entries {
			if e.expired(now) {
				delete(ns.entries, k)
				removed++
			}
		}
		sizes[name] = len(ns.entries)
	}
	s.mu.Unlock()

	for name, size := range sizes {
		s.recorder.Size(name, size)
	}
	if removed > 0 {
		s.logger.Debug("Swept expired cache entries", zap.Int("removed", removed))
	}
	return removed
}
