package main

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

const forwardedHeader = "X-Forwarded-For"

type admitter interface {
	tryAdmit(key string, now time.Time, minInterval time.Duration) bool
}

// rateLimiter remembers the last accepted publish per key. Keys are never
// evicted.
type rateLimiter struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		last: make(map[string]time.Time),
	}
}

// tryAdmit admits at most one publish per key per minInterval and records
// the admitted instant. The check and the record happen under one lock.
func (l *rateLimiter) tryAdmit(key string, now time.Time, minInterval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[key]; ok && now.Sub(last) < minInterval {
		return false
	}
	l.last[key] = now
	return true
}

func (l *rateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}

// forwardedKey returns the first address of X-Forwarded-For. Requests
// without the header all share the "" key.
func forwardedKey(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get(forwardedHeader), ",")
	return strings.TrimSpace(first)
}
