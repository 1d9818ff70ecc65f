// Package ratelimit gates outbound requests before they reach the transport.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRequests = 2
	DefaultWindow   = 5 * time.Second
	defaultIdleTTL  = 10 * time.Minute
)

// Limiter reports whether the caller may issue another request.
type Limiter interface {
	Allow(key string) bool
}

// KeyedLimiter applies a token bucket per key and evicts idle buckets.
type KeyedLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	byKey map[string]*bucket
	hits  uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New allows requests per window for each key; returns nil if args are invalid.
// A nil limiter allows everything.
func New(requests int, window time.Duration) *KeyedLimiter {
	if requests <= 0 || window <= 0 {
		return nil
	}
	return &KeyedLimiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		byKey:   make(map[string]*bucket),
	}
}

// Allow consumes one token for key.
func (l *KeyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.byKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// Deny is a Limiter that refuses every request.
type Deny struct{}

func (Deny) Allow(string) bool { return false }

// Unlimited is a Limiter that accepts every request.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }
