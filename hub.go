package main

import (
	"sync"
)

const defaultSubscriberBuffer = 256

// broker is the publish/subscribe bus seen by senders and sessions.
type broker interface {
	publish(topic string, msg message) int
	subscribe(topic string) *subscription
	unsubscribe(sub *subscription)
}

// subscription is one listener's live feed of a topic. Its queue is closed
// when it is unsubscribed or the hub closes.
type subscription struct {
	topic string
	send  chan message
}

func (s *subscription) messages() <-chan message {
	return s.send
}

// hub fans messages out to the channels of each topic. A channel exists
// while it has subscribers. Publish, subscribe and unsubscribe share one
// lock, so every subscriber sees messages in the order publish completed.
type hub struct {
	mu       sync.Mutex
	channels channels
	buffer   int
	closed   bool
	m        *metrics
}

type channels map[string]*channel

func newHub(buffer int, m *metrics) *hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &hub{
		channels: make(channels),
		buffer:   buffer,
		m:        m,
	}
}

func (h *hub) subscribe(topic string) *subscription {
	sub := &subscription{
		topic: topic,
		send:  make(chan message, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.send)
		return sub
	}

	c, ok := h.channels[topic]
	if !ok {
		c = newChannel(topic)
		h.channels[topic] = c
		h.m.incr("channels", 1)
	}
	c.subscribe(sub)
	h.m.incr("subscriptions", 1)
	return sub
}

func (h *hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.channels[sub.topic]
	if !ok || !c.unsubscribe(sub) {
		return
	}
	h.m.decr("subscriptions", 1)
	if c.empty() {
		h.remove(sub.topic)
	}
}

// publish never waits on a subscriber. It returns how many subscribers
// received msg.
func (h *hub) publish(topic string, msg message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.channels[topic]
	if !ok {
		h.m.mark("bus.unrouted", 1)
		return 0
	}
	delivered, dropped := c.publish(msg)
	h.m.mark("bus.published", 1)
	if dropped > 0 {
		h.m.mark("bus.drops", int64(dropped))
	}
	return delivered
}

func (h *hub) remove(topic string) {
	if _, ok := h.channels[topic]; ok {
		delete(h.channels, topic)
		h.m.decr("channels", 1)
	}
}

// close ends every subscription. Later subscriptions are born closed.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, c := range h.channels {
		for sub := range c.subscribers {
			c.unsubscribe(sub)
			h.m.decr("subscriptions", 1)
		}
		h.remove(topic)
	}
	h.closed = true
}
