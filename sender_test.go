package main

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker records what is published.
type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]message
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string][]message)}
}

func (b *fakeBroker) publish(topic string, msg message) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], msg)
	return 1
}

func (b *fakeBroker) subscribe(topic string) *subscription {
	return &subscription{topic: topic, send: make(chan message)}
}

func (b *fakeBroker) unsubscribe(*subscription) {}

func (b *fakeBroker) messages(topic string) []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]message(nil), b.published[topic]...)
}

func newTestSender(bus broker) (*sender, *clock.Mock) {
	clk := clock.NewMock()
	clk.Add(time.Hour)
	s := newSender(bus, newRateLimiter(), clk, "chat", time.Second, zerolog.Nop(), newTestMetrics())
	s.newID = func() string { return "fixed-id" }
	return s, clk
}

func validSend(key string, body string) outgoing {
	return outgoing{
		key:      key,
		method:   http.MethodPost,
		user:     "alice",
		signedIn: true,
		body:     strings.NewReader(body),
	}
}

func TestSendPublishes(t *testing.T) {
	bus := newFakeBroker()
	s, clk := newTestSender(bus)

	msg, err := s.send(validSend("k", `{"body":"hello"}`))
	require.NoError(t, err)

	want := message{
		ID:   "fixed-id",
		TS:   clk.Now().UTC().Format(timestampLayout),
		User: "alice",
		Body: "hello",
	}
	assert.Equal(t, want, msg)
	assert.Equal(t, "1970-01-01T01:00:00.000Z", msg.TS)
	assert.Equal(t, []message{want}, bus.messages("chat"))
}

func TestSendNotSignedIn(t *testing.T) {
	bus := newFakeBroker()
	s, _ := newTestSender(bus)

	o := validSend("k", `{"body":"hi"}`)
	o.signedIn = false
	o.user = ""

	_, err := s.send(o)
	assert.ErrorIs(t, err, errNotAuthenticated)
	assert.Empty(t, bus.messages("chat"))
}

func TestSendInvalidBody(t *testing.T) {
	bodies := map[string]io.Reader{
		"number":     strings.NewReader(`{"body":123}`),
		"missing":    strings.NewReader(`{"text":"hi"}`),
		"empty":      strings.NewReader(`{"body":""}`),
		"null":       strings.NewReader(`{"body":null}`),
		"malformed":  strings.NewReader(`{"body":`),
		"not json":   strings.NewReader(`hello`),
		"no body":    nil,
		"trailing":   strings.NewReader(`{"body":"hi"} not json`),
		"two values": strings.NewReader(`{"body":"a"}{"body":"b"}`),
		"key case":   strings.NewReader(`{"BODY":"shout"}`),
		"array":      strings.NewReader(`[{"body":"hi"}]`),
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			bus := newFakeBroker()
			s, _ := newTestSender(bus)

			o := validSend(name, "")
			o.body = body
			_, err := s.send(o)
			assert.ErrorIs(t, err, errInvalidBody)
			assert.Empty(t, bus.messages("chat"))
		})
	}
}

func TestSendBodyKeyIsExact(t *testing.T) {
	bus := newFakeBroker()
	s, _ := newTestSender(bus)

	msg, err := s.send(validSend("k", `{"body":"x","Body":"y"}`+"\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", msg.Body)
	require.Len(t, bus.messages("chat"), 1)
	assert.Equal(t, "x", bus.messages("chat")[0].Body)
}

func TestSendMethodNotAllowed(t *testing.T) {
	bus := newFakeBroker()
	s, clk := newTestSender(bus)

	o := validSend("k", `{"body":"hi"}`)
	o.method = http.MethodGet
	_, err := s.send(o)
	assert.ErrorIs(t, err, errMethodNotAllowed)

	// the rejected attempt was still charged to the key
	_, err = s.send(validSend("k", `{"body":"hi"}`))
	assert.ErrorIs(t, err, errRateLimited)

	clk.Add(time.Second)
	_, err = s.send(validSend("k", `{"body":"hi"}`))
	assert.NoError(t, err)
}

func TestSendRateLimited(t *testing.T) {
	bus := newFakeBroker()
	s, clk := newTestSender(bus)

	_, err := s.send(validSend("203.0.113.7", `{"body":"first"}`))
	require.NoError(t, err)

	clk.Add(500 * time.Millisecond)
	_, err = s.send(validSend("203.0.113.7", `{"body":"second"}`))
	assert.ErrorIs(t, err, errRateLimited)

	// another key is not affected
	_, err = s.send(validSend("198.51.100.1", `{"body":"other"}`))
	assert.NoError(t, err)

	clk.Add(500 * time.Millisecond)
	_, err = s.send(validSend("203.0.113.7", `{"body":"third"}`))
	assert.NoError(t, err)

	bodies := []string{}
	for _, msg := range bus.messages("chat") {
		bodies = append(bodies, msg.Body)
	}
	assert.Equal(t, []string{"first", "other", "third"}, bodies)
}

func TestSendGeneratesIDs(t *testing.T) {
	bus := newFakeBroker()
	s := newSender(bus, newRateLimiter(), clock.NewMock(), "", 0, zerolog.Nop(), newTestMetrics())
	assert.Equal(t, defaultTopic, s.topic)

	first, err := s.send(validSend("a", `{"body":"one"}`))
	require.NoError(t, err)
	second, err := s.send(validSend("b", `{"body":"two"}`))
	require.NoError(t, err)

	assert.Len(t, first.ID, 36)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(errRateLimited))
	assert.Equal(t, http.StatusBadRequest, statusFor(errNotAuthenticated))
	assert.Equal(t, http.StatusBadRequest, statusFor(errInvalidBody))
	assert.Equal(t, http.StatusBadRequest, statusFor(errInvalidName))
	assert.Equal(t, http.StatusMethodNotAllowed, statusFor(errMethodNotAllowed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
