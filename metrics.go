package main

import (
	"context"
	"io"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

type metrics struct {
	log  io.Writer
	reg  gometrics.Registry
	tick time.Duration
}

func newMetrics(log io.Writer, tick time.Duration) *metrics {
	return &metrics{
		log:  log,
		reg:  gometrics.NewRegistry(),
		tick: tick,
	}
}

// run writes the registry as JSON every tick until ctx is done, then
// writes it once more. A zero tick only writes the final report.
func (m *metrics) run(ctx context.Context) {
	defer m.writeOnce()
	if m.tick <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.writeOnce()
		case <-ctx.Done():
			return
		}
	}
}

func (m *metrics) writeOnce() {
	m.writeTo(m.log)
}

func (m *metrics) writeTo(w io.Writer) {
	gometrics.WriteJSONOnce(m.reg, w)
}

func (m *metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m *metrics) decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

func (m *metrics) mark(name string, i int64) {
	gometrics.GetOrRegisterMeter(name, m.reg).Mark(i)
}

func (m *metrics) gauge(name string, v int64) {
	gometrics.GetOrRegisterGauge(name, m.reg).Update(v)
}
