package main

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepaliveTicks(t *testing.T) {
	clk := clock.NewMock()
	m := newTestMetrics()
	ka := newKeepalive(clk, time.Second, m)
	defer ka.stop()

	select {
	case <-ka.ticks():
		t.Fatal("tick before the first interval elapsed")
	default:
	}

	// The mock ticker only delivers to a receiver that is already waiting.
	want := clk.Now().Add(time.Second)
	go clk.Add(time.Second)
	select {
	case tick := <-ka.ticks():
		assert.Equal(t, want, tick)
	case <-time.After(time.Second):
		t.Fatal("no tick after one interval")
	}
}

func TestKeepaliveStop(t *testing.T) {
	clk := clock.NewMock()
	m := newTestMetrics()
	ka := newKeepalive(clk, time.Second, m)
	require.Equal(t, int64(1), m.count("keepalives"))

	ka.stop()
	ka.stop()
	assert.Equal(t, int64(0), m.count("keepalives"))

	clk.Add(5 * time.Second)
	select {
	case <-ka.ticks():
		t.Fatal("stopped keepalive ticked")
	default:
	}
}

func TestKeepaliveDefaultInterval(t *testing.T) {
	clk := clock.NewMock()
	ka := newKeepalive(clk, 0, newTestMetrics())
	defer ka.stop()

	go clk.Add(defaultKeepaliveInterval)
	select {
	case <-ka.ticks():
	case <-time.After(time.Second):
		t.Fatal("no tick at the default interval")
	}
}
