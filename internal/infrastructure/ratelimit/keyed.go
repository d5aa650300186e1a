// Package ratelimit provides token bucket limiters keyed by tenant or client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed holds one token bucket per key. Buckets idle for longer than the idle
// timeout are evicted by Sweep.
type Keyed struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

// NewKeyed creates a limiter allowing perMinute events per key with the given burst
func NewKeyed(perMinute, burst int) *Keyed {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &Keyed{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether one event for key may happen now
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Remaining returns the whole tokens currently available for key
func (k *Keyed) Remaining(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	b, ok := k.buckets[key]
	if !ok {
		return k.burst
	}
	tokens := int(b.limiter.TokensAt(k.now()))
	if tokens < 0 {
		return 0
	}
	return tokens
}

// Limit returns the configured burst, reported to clients as the request limit
func (k *Keyed) Limit() int {
	return k.burst
}

// Sweep evicts idle buckets and returns how many were removed
func (k *Keyed) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-k.idle)
	removed := 0
	for key, b := range k.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(k.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Run sweeps idle buckets every interval until ctx is done
func (k *Keyed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Sweep()
		}
	}
}
