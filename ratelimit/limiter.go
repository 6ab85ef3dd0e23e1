// Package ratelimit implements the per-key hourly quota: an
// in-process counter keyed by (apiKeyId, hourBucket). Counters reset
// on restart by design, since they exist to protect the hardware
// modem rather than to enforce a billing-grade SLA.
package ratelimit

import (
	"os"
	"strconv"
	"sync"
	"time"
)

const defaultLimit = 100

// Limiter tracks per-key counters for the current and recent hour
// buckets, guarded by a single mutex so increments are atomic.
type Limiter struct {
	mu           sync.Mutex
	counters     map[bucketKey]int
	defaultLimit int
}

type bucketKey struct {
	apiKeyID string
	bucket   int64
}

// New constructs an empty Limiter, with its fallback quota read from
// DEFAULT_RATE_LIMIT (falling back to defaultLimit when unset or
// unparsable).
func New() *Limiter {
	limit := defaultLimit
	if raw := os.Getenv("DEFAULT_RATE_LIMIT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return &Limiter{counters: make(map[bucketKey]int), defaultLimit: limit}
}

// Result is the outcome of an Allow check, carrying the values needed
// for the X-RateLimit-* response headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetUnix int64
}

// HourBucket returns floor(unixSeconds/3600), the scoping key for hourly
// quotas (GLOSSARY).
func HourBucket(t time.Time) int64 {
	return t.Unix() / 3600
}

// Allow increments the counter for (apiKeyID, current hour bucket) if
// under the effective limit (apiKey.RateLimit, or the global default),
// and reports the resulting quota state.
func (l *Limiter) Allow(apiKeyID string, effectiveLimit *int, now time.Time) Result {
	limit := l.defaultLimit
	if effectiveLimit != nil && *effectiveLimit > 0 {
		limit = *effectiveLimit
	}

	bucket := HourBucket(now)
	resetUnix := (bucket + 1) * 3600
	key := bucketKey{apiKeyID: apiKeyID, bucket: bucket}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(bucket)

	current := l.counters[key]
	if current >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetUnix: resetUnix}
	}

	l.counters[key] = current + 1
	remaining := limit - (current + 1)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Limit: limit, Remaining: remaining, ResetUnix: resetUnix}
}

// pruneLocked drops counters for buckets more than one hour stale, so
// memory doesn't grow unbounded across process lifetime.
func (l *Limiter) pruneLocked(currentBucket int64) {
	for k := range l.counters {
		if k.bucket < currentBucket-1 {
			delete(l.counters, k)
		}
	}
}
