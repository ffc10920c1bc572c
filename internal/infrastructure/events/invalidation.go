// Package events carries cache invalidations between service instances so
// an admin refresh on one instance clears every instance's store.
package events

import (
	"context"
	"strings"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
)

// Invalidation describes what to drop. The most specific field wins:
// Version, then Pattern (within Namespace when set), then Namespace, and
// an empty message clears everything.
type Invalidation struct {
	Namespace string `json:"namespace,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Version   string `json:"version,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// Invalidator broadcasts invalidations to other instances.
type Invalidator interface {
	Publish(ctx context.Context, inv Invalidation) error
}

// Apply performs inv against store and returns how many entries were
// removed by key; namespace clears report -1.
func Apply(store *cache.Store, inv Invalidation) int {
	switch {
	case inv.Version != "":
		return store.InvalidateByVersion(inv.Version)
	case inv.Pattern != "":
		prefix := ""
		if inv.Namespace != "" {
			prefix = cache.Qualify(inv.Namespace, "")
		}
		return store.DeleteFunc(func(key, _ string) bool {
			return strings.HasPrefix(key, prefix) && strings.Contains(key, inv.Pattern)
		})
	default:
		store.Clear(inv.Namespace)
		return -1
	}
}

// NoopBus is used when cross-instance invalidation is disabled.
type NoopBus struct{}

// Publish does nothing.
func (NoopBus) Publish(context.Context, Invalidation) error { return nil }
