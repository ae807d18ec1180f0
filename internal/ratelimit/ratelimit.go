// Package ratelimit provides a sliding window limiter for outbound API
// calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// windowDuration is the fixed time window for the limit (always 1 minute)
const windowDuration = 60 * time.Second

// Gate limits call throughput to a fixed number per minute using a sliding
// window of call timestamps.
type Gate struct {
	limitPerMinute int
	timestamps     []time.Time
	mutex          sync.Mutex

	// now is replaceable for tests
	now func() time.Time
}

// New creates a Gate allowing limitPerMinute calls per sliding minute.
// A non-positive limit disables limiting.
func New(limitPerMinute int) *Gate {
	return &Gate{
		limitPerMinute: limitPerMinute,
		timestamps:     make([]time.Time, 0, limitPerMinute+1),
		now:            time.Now,
	}
}

// Allow reports whether a call may proceed right now, recording it if so.
func (g *Gate) Allow() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.tryReserve()
}

// Wait blocks until a call slot is free or the context is cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mutex.Lock()
		if g.tryReserve() {
			g.mutex.Unlock()
			return nil
		}
		delay := g.timestamps[0].Add(windowDuration).Sub(g.now())
		g.mutex.Unlock()

		if delay <= 0 {
			delay = time.Millisecond
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryReserve must be called with the mutex held.
func (g *Gate) tryReserve() bool {
	if g.limitPerMinute <= 0 {
		return true
	}

	now := g.now()

	// Drop timestamps outside the window
	windowStart := now.Add(-windowDuration)
	valid := g.timestamps[:0]
	for _, ts := range g.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	g.timestamps = valid

	if len(g.timestamps) >= g.limitPerMinute {
		return false
	}

	g.timestamps = append(g.timestamps, now)
	return true
}

// Stats contains gate statistics for monitoring
type Stats struct {
	InWindow       int `json:"in_window"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}

// GetStats returns statistics about the gate for monitoring/debugging
func (g *Gate) GetStats() Stats {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return Stats{
		InWindow:       len(g.timestamps),
		LimitPerMinute: g.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}
