package main

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
)

// frameWriter is the outbound half of a listener's transport. Only the
// session goroutine writes to it.
type frameWriter interface {
	writeFrame(line []byte) error
}

// session streams one topic to one listener, interleaving keepalives with
// published messages in arrival order.
type session struct {
	bus      broker
	topic    string
	clock    clock.Clock
	interval time.Duration
	w        frameWriter
	log      zerolog.Logger
	m        *metrics
}

// run blocks until ctx is done, the subscription is closed or a write
// fails. The subscription and the keepalive ticker are released on every
// path before run returns. A write error is returned as-is; callers treat
// it as the listener going away.
func (s *session) run(ctx context.Context) error {
	sub := s.bus.subscribe(s.topic)
	ka := newKeepalive(s.clock, s.interval, s.m)
	s.m.incr("listeners", 1)
	defer func() {
		s.bus.unsubscribe(sub)
		ka.stop()
		s.m.decr("listeners", 1)
	}()

	if err := s.w.writeFrame(keepaliveLine); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("listener gone")
			return nil
		case <-ka.ticks():
			if err := s.w.writeFrame(keepaliveLine); err != nil {
				return err
			}
		case msg, ok := <-sub.messages():
			if !ok {
				s.log.Debug().Msg("subscription closed")
				return nil
			}
			line, err := encodeMessage(msg)
			if err != nil {
				s.log.Error().Err(err).Str("id", msg.ID).Msg("encode message")
				continue
			}
			if err := s.w.writeFrame(line); err != nil {
				return err
			}
			s.m.incr("conn.send", 1)
		}
	}
}
