package main

// channel holds the subscribers of one topic. It is only touched with the
// hub lock held.
type channel struct {
	topic       string
	subscribers subscribers
}

type subscribers map[*subscription]struct{}

func newChannel(topic string) *channel {
	return &channel{
		topic:       topic,
		subscribers: make(subscribers),
	}
}

func (c *channel) subscribe(sub *subscription) {
	c.subscribers[sub] = struct{}{}
}

// unsubscribe removes sub and closes its queue. It reports whether sub was
// subscribed.
func (c *channel) unsubscribe(sub *subscription) bool {
	if _, ok := c.subscribers[sub]; !ok {
		return false
	}
	delete(c.subscribers, sub)
	close(sub.send)
	return true
}

// publish hands msg to every subscriber that has room for it. A full queue
// loses this message; the subscriber stays.
func (c *channel) publish(msg message) (delivered, dropped int) {
	for sub := range c.subscribers {
		select {
		case sub.send <- msg:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

func (c *channel) empty() bool {
	return len(c.subscribers) == 0
}
