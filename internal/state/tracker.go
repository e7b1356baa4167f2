// Package state tracks the ND alert currently shown for each source.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"xraas_nd/internal/ndalert"
)

// DefaultTimeout is how long an alert stays on the display after the
// last time it was seen on the bus.
const DefaultTimeout = 7 * time.Second

// Tracker manages the current alert per source.
type Tracker struct {
	mu      sync.RWMutex
	clk     clock.Clock
	timeout time.Duration

	alerts map[string]*Current
	stats  Stats

	// Callbacks for change notifications.
	onChanged func(*Current)
	onCleared func(source string)
}

// NewTracker creates a tracker. A zero timeout selects DefaultTimeout and
// a nil clock the wall clock.
func NewTracker(timeout time.Duration, clk clock.Clock) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{
		clk:     clk,
		timeout: timeout,
		alerts:  make(map[string]*Current),
	}
}

// Timeout returns the display timeout.
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// OnChanged sets a callback for when a source starts showing a different message.
func (t *Tracker) OnChanged(fn func(*Current)) {
	t.onChanged = fn
}

// OnCleared sets a callback for when a source stops showing a message.
func (t *Tracker) OnCleared(fn func(source string)) {
	t.onCleared = fn
}

// Update records a decode result for source. A failed decode means the
// bus is idle and clears whatever the source was showing.
func (t *Tracker) Update(source string, alert ndalert.Alert, ok bool) *Current {
	t.mu.Lock()

	now := t.clk.Now()
	if !ok {
		t.stats.Rejected++
		_, had := t.alerts[source]
		if had {
			delete(t.alerts, source)
			t.stats.Cleared++
		}
		t.mu.Unlock()
		if had && t.onCleared != nil {
			t.onCleared(source)
		}
		return nil
	}

	t.stats.Updates++
	cur, exists := t.alerts[source]
	// A stale entry starts over even when the value is unchanged.
	changed := !exists || t.stale(cur) || cur.Alert != alert
	if changed {
		cur = &Current{
			Source:    source,
			Alert:     alert,
			FirstSeen: now,
		}
		t.alerts[source] = cur
	}
	cur.LastSeen = now
	cur.MsgCount++
	snapshot := *cur
	t.mu.Unlock()

	if changed && t.onChanged != nil {
		t.onChanged(&snapshot)
	}
	return &snapshot
}

// Current returns the live alert for source, if any.
func (t *Tracker) Current(source string) (Current, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur, ok := t.alerts[source]
	if !ok || t.stale(cur) {
		return Current{}, false
	}
	return *cur, true
}

// Snapshot returns all live alerts sorted by source.
func (t *Tracker) Snapshot() []Current {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Current, 0, len(t.alerts))
	for _, cur := range t.alerts {
		if !t.stale(cur) {
			result = append(result, *cur)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Source < result[j].Source
	})
	return result
}

// Expire removes alerts that have outlived the timeout and returns how
// many were removed.
func (t *Tracker) Expire() int {
	t.mu.Lock()
	var removed []string
	for source, cur := range t.alerts {
		if t.stale(cur) {
			delete(t.alerts, source)
			removed = append(removed, source)
		}
	}
	t.stats.Expired += len(removed)
	t.mu.Unlock()

	if t.onCleared != nil {
		sort.Strings(removed)
		for _, source := range removed {
			t.onCleared(source)
		}
	}
	return len(removed)
}

// GetStats returns the tracker counters.
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := t.stats
	for _, cur := range t.alerts {
		if !t.stale(cur) {
			stats.Active++
		}
	}
	return stats
}

// stale must be called with t.mu held.
func (t *Tracker) stale(cur *Current) bool {
	return t.clk.Since(cur.LastSeen) > t.timeout
}
