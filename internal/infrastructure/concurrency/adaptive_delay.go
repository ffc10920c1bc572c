package concurrency

import (
	"sync"
	"time"
)

// AdaptiveConfig tunes AdaptiveDelay. The reference values were measured
// against a two-connection replica pool.
type AdaptiveConfig struct {
	Enabled       bool
	MinDelay      time.Duration
	MaxDelay      time.Duration
	IncreaseStep  time.Duration
	DecreaseStep  time.Duration
	SlowThreshold time.Duration
	FastThreshold time.Duration
}

// DefaultAdaptiveConfig returns the reference tuning.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Enabled:       true,
		MinDelay:      100 * time.Millisecond,
		MaxDelay:      time.Second,
		IncreaseStep:  100 * time.Millisecond,
		DecreaseStep:  50 * time.Millisecond,
		SlowThreshold: 2 * time.Second,
		FastThreshold: 500 * time.Millisecond,
	}
}

// AdaptiveDelay is an additive-increase, additive-decrease throttle on the
// pause between batches. A batch slower than SlowThreshold lengthens the
// pause by IncreaseStep; one faster than FastThreshold shortens it by
// DecreaseStep. The pause stays within [MinDelay, MaxDelay].
type AdaptiveDelay struct {
	mu      sync.Mutex
	cfg     AdaptiveConfig
	current time.Duration
}

// NewAdaptiveDelay starts at MinDelay.
func NewAdaptiveDelay(cfg AdaptiveConfig) *AdaptiveDelay {
	return &AdaptiveDelay{cfg: cfg, current: cfg.MinDelay}
}

// Observe records how long a batch took and returns the pause to apply
// before the next one.
func (d *AdaptiveDelay) Observe(batch time.Duration) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case batch > d.cfg.SlowThreshold:
		d.current += d.cfg.IncreaseStep
	case batch < d.cfg.FastThreshold:
		d.current -= d.cfg.DecreaseStep
	}
	d.current = clamp(d.current, d.cfg.MinDelay, d.cfg.MaxDelay)
	return d.current
}

// Current returns the pause without changing it.
func (d *AdaptiveDelay) Current() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Reconfigure applies new tuning, keeping the current pause if it is still
// within bounds.
func (d *AdaptiveDelay) Reconfigure(cfg AdaptiveConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	d.current = clamp(d.current, cfg.MinDelay, cfg.MaxDelay)
}

func clamp(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
