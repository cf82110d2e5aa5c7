// Package pingchat is a minimal real-time chat relay.
//
//     pingchat --addr=:8081
//
// Everything is as ephemeral as can be. A message is sent to connected
// listeners (if any) and then forgotten. There is no history: a listener
// sees only messages published after it connected.
//
// Sign in by POSTing a name to /signin. The name is kept in a cookie.
//     curl -c jar localhost:8081/signin -d name=alice
//
// Publish by POSTing JSON to /send. One message per second per IP.
//     curl -b jar localhost:8081/send -d '{"body":"hello"}'
//
// Listen by GETting /listen. The response is newline-delimited JSON: a
// keepalive record on connect and every second, and a msg record for every
// published message.
//     {"kind":"keepalive"}
//     {"kind":"msg","data":{"id":"...","ts":"...","user":"alice","body":"hello"}}
//
// Opening a websocket to /listen streams the same records as text messages,
// and text messages sent on that websocket are published like POST /send.
package main

import (
	"encoding/json"
	"time"
)

const (
	frameKeepalive = "keepalive"
	frameMsg       = "msg"

	// ISO-8601 in UTC with millisecond precision.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// message is created once per publish and never mutated afterwards.
type message struct {
	ID   string `json:"id"`
	TS   string `json:"ts"`
	User string `json:"user"`
	Body string `json:"body"`
}

func newMessage(id string, at time.Time, user, body string) message {
	return message{
		ID:   id,
		TS:   at.UTC().Format(timestampLayout),
		User: user,
		Body: body,
	}
}

type frame struct {
	Kind string   `json:"kind"`
	Data *message `json:"data,omitempty"`
}

var keepaliveLine = mustEncode(frame{Kind: frameKeepalive})

// encodeFrame returns one newline-terminated JSON record.
func encodeFrame(f frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func encodeMessage(msg message) ([]byte, error) {
	return encodeFrame(frame{Kind: frameMsg, Data: &msg})
}

func mustEncode(f frame) []byte {
	b, err := encodeFrame(f)
	if err != nil {
		panic(err)
	}
	return b
}
