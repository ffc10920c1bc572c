package cache

import "math"

// Statistics is a snapshot of one namespace's counters.
type Statistics struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	TotalRequests int64   `json:"totalRequests"`
	HitRate       float64 `json:"hitRate"` // percent, two decimals
	Size          int     `json:"size"`
	MaxSize       int     `json:"maxSize"`
}

// Recorder receives cache traffic for export to a metrics backend.
type Recorder interface {
	Hit(namespace string)
	Miss(namespace string)
	Evicted(namespace string, n int)
	Size(namespace string, size int)
}

type nopRecorder struct{}

func (nopRecorder) Hit(string)          {}
func (nopRecorder) Miss(string)         {}
func (nopRecorder) Evicted(string, int) {}
func (nopRecorder) Size(string, int)    {}

func (ns *namespace) stats() Statistics {
	total := ns.hits + ns.misses
	st := Statistics{
		Hits:          ns.hits,
		Misses:        ns.misses,
		TotalRequests: total,
		Size:          len(ns.entries),
		MaxSize:       ns.maxSize,
	}
	if total > 0 {
		st.HitRate = math.Round(float64(ns.hits)/float64(total)*10000) / 100
	}
	return st
}

// Stats returns the statistics of one namespace. The default namespace is
// used when namespace is "".
func (s *Store) Stats(namespace string) (Statistics, bool) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		return Statistics{}, false
	}
	return ns.stats(), true
}

// AllStats returns the statistics of every namespace.
func (s *Store) AllStats() map[string]Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Statistics, len(s.namespaces))
	for name, ns := range s.namespaces {
		out[name] = ns.stats()
	}
	return out
}
