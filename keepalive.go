package main

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

const defaultKeepaliveInterval = time.Second

// keepalive is a session's periodic tick. Ticks the session is not ready to
// receive are discarded by the underlying ticker.
type keepalive struct {
	mux     sync.Mutex // Protects stopped
	ticker  *clock.Ticker
	stopped bool
	m       *metrics
}

// newKeepalive arms a ticker whose first tick arrives one interval from now.
func newKeepalive(clk clock.Clock, interval time.Duration, m *metrics) *keepalive {
	if interval <= 0 {
		interval = defaultKeepaliveInterval
	}
	m.incr("keepalives", 1)
	return &keepalive{
		ticker: clk.Ticker(interval),
		m:      m,
	}
}

func (k *keepalive) ticks() <-chan time.Time {
	return k.ticker.C
}

// stop releases the ticker. Calling it more than once is harmless.
func (k *keepalive) stop() {
	k.mux.Lock()
	defer k.mux.Unlock()

	if k.stopped {
		return
	}
	k.ticker.Stop()
	k.stopped = true
	k.m.decr("keepalives", 1)
}
