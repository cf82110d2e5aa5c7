package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscription(buffer int) *subscription {
	return &subscription{topic: "chat", send: make(chan message, buffer)}
}

func TestChannelSubscribe(t *testing.T) {
	c := newChannel("chat")
	require.True(t, c.empty())

	c.subscribe(newTestSubscription(1))
	assert.Len(t, c.subscribers, 1)
	assert.False(t, c.empty())
}

func TestChannelPublish(t *testing.T) {
	c := newChannel("chat")
	sub1 := newTestSubscription(1)
	sub2 := newTestSubscription(1)
	c.subscribe(sub1)
	c.subscribe(sub2)

	delivered, dropped := c.publish(testMessage("banana"))
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, "banana", (<-sub1.send).Body)

	// sub2 still holds "banana"; its copy of "monkey" is lost
	delivered, dropped = c.publish(testMessage("monkey"))
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "monkey", (<-sub1.send).Body)
	assert.Equal(t, "banana", (<-sub2.send).Body)
}

func TestChannelUnsubscribe(t *testing.T) {
	c := newChannel("chat")
	sub := newTestSubscription(1)
	c.subscribe(sub)

	assert.True(t, c.unsubscribe(sub))
	assert.True(t, c.empty())
	assert.False(t, c.unsubscribe(sub), "second unsubscribe is a no-op")

	_, ok := <-sub.send
	assert.False(t, ok, "send queue should be closed")
}
