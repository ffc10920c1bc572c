package mappings

import (
	"context"
	"time"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
)

// CacheNamespace holds the mapping list, short-lived.
const CacheNamespace = "clients"

const activeKey = "active_tables"

// CachedSource keeps the mapping list for a short TTL so a burst of
// dashboard requests shares one lookup.
type CachedSource struct {
	store  *cache.Store
	lookup cache.Func[struct{}, []TableDescriptor]
}

// NewCachedSource wraps inner. ttl falls back to the namespace TTL when zero.
func NewCachedSource(inner Source, store *cache.Store, ttl time.Duration) *CachedSource {
	fn := func(ctx context.Context, _ struct{}) ([]TableDescriptor, error) {
		return inner.ListActive(ctx)
	}
	return &CachedSource{
		store: store,
		lookup: cache.WithCache(fn, store, func(struct{}) string { return activeKey }, cache.Options{
			TTL:       ttl,
			Namespace: CacheNamespace,
		}),
	}
}

// ListActive returns the cached list or fetches it. Callers get their own
// copy of the slice.
func (c *CachedSource) ListActive(ctx context.Context) ([]TableDescriptor, error) {
	tables, err := c.lookup(ctx, struct{}{})
	if err != nil {
		return nil, err
	}
	return append([]TableDescriptor(nil), tables...), nil
}

// Invalidate drops the cached list.
func (c *CachedSource) Invalidate() {
	c.store.Delete(activeKey, CacheNamespace)
}
