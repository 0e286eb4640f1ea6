// Package ratelimit implements the minimum-interval gate used to throttle
// outbound requests to the Wayback Machine.
//
// Unlike a token-bucket limiter, this gate enforces a strict minimum
// interval between calls sharing the same named bucket: the mutex
// guarding a bucket's last-call time is held across the sleep itself, so
// concurrent callers queue up and are released one at a time, each
// waiting out whatever is left of the interval when it reaches the front.
// This mirrors the reference Python client's rate_limited() context
// manager rather than golang.org/x/time/rate's Wait(), which would allow
// bursts up to its bucket size instead of serializing strictly.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/metrics"
)

// Gate enforces a minimum interval between calls within a named bucket.
type Gate struct {
	mu          sync.Mutex
	lastCallAt  map[string]time.Time
	minInterval map[string]time.Duration
	defaultMin  time.Duration
}

// New creates a Gate whose default minimum interval between calls (for
// buckets not explicitly configured) corresponds to callsPerSecond.
// A non-positive callsPerSecond disables the default limit.
func New(callsPerSecond float64) *Gate {
	g := &Gate{
		lastCallAt:  make(map[string]time.Time),
		minInterval: make(map[string]time.Duration),
	}
	if callsPerSecond > 0 {
		g.defaultMin = time.Duration(float64(time.Second) / callsPerSecond)
	}
	return g
}

// SetBucketRate configures an explicit calls-per-second rate for a named
// bucket, overriding the gate's default for that bucket only. A
// non-positive rate disables throttling for that bucket.
func (g *Gate) SetBucketRate(bucket string, callsPerSecond float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if callsPerSecond > 0 {
		g.minInterval[bucket] = time.Duration(float64(time.Second) / callsPerSecond)
	} else {
		g.minInterval[bucket] = 0
	}
}

// Wait blocks until the named bucket's minimum interval since its last
// call has elapsed, then records the current time as the new last call.
// It holds the gate's lock for the entire wait so that concurrent callers
// targeting the same bucket are serialized rather than waking up
// simultaneously. If ctx is canceled while waiting, Wait returns ctx.Err()
// without recording a call.
func (g *Gate) Wait(ctx context.Context, bucket string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	interval, ok := g.minInterval[bucket]
	if !ok {
		interval = g.defaultMin
	}
	if interval <= 0 {
		g.lastCallAt[bucket] = time.Now()
		return nil
	}

	var waited time.Duration
	if last, ok := g.lastCallAt[bucket]; ok {
		elapsed := time.Since(last)
		if elapsed < interval {
			waited = interval - elapsed
			timer := time.NewTimer(waited)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	metrics.RateLimitWait.WithLabelValues(bucket).Observe(waited.Seconds())
	g.lastCallAt[bucket] = time.Now()
	return nil
}

// Reset clears every bucket's last-call time, so the next Wait call for
// any bucket proceeds without delay. Intended for test use, to avoid
// inter-test coupling through a shared Gate.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCallAt = make(map[string]time.Time)
}
