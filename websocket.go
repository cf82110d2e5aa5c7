package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the listener.
	writeWait = 10 * time.Second

	// Maximum message size allowed from a websocket peer.
	maxMessageSize = 64 * 1024
)

type websocketManager interface {
	wsSetReadLimit()
	wsReadMessage() (int, []byte, error)
	wsSetWriteDeadline()
	wsWriteMessage(int, []byte) error
	wsClose()
}

type websocketInteractor struct {
	ws *websocket.Conn
}

func (w websocketInteractor) wsSetReadLimit() {
	w.ws.SetReadLimit(maxMessageSize)
}

func (w websocketInteractor) wsClose() {
	w.ws.Close()
}

func (w websocketInteractor) wsReadMessage() (messageType int, p []byte, err error) {
	return w.ws.ReadMessage()
}

func (w websocketInteractor) wsSetWriteDeadline() {
	w.ws.SetWriteDeadline(time.Now().Add(writeWait))
}

func (w websocketInteractor) wsWriteMessage(messageType int, payload []byte) error {
	return w.ws.WriteMessage(messageType, payload)
}

// wsFrameWriter sends every record as one text message, without the
// trailing newline.
type wsFrameWriter struct {
	w websocketManager
}

func (f wsFrameWriter) writeFrame(line []byte) error {
	f.w.wsSetWriteDeadline()
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return f.w.wsWriteMessage(websocket.TextMessage, line)
}

// ndjsonWriter streams records on a plain HTTP response, flushing after
// each one.
type ndjsonWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	return &ndjsonWriter{w: w, rc: http.NewResponseController(w)}
}

func (n *ndjsonWriter) writeFrame(line []byte) error {
	// Not every ResponseWriter supports deadlines; those just block.
	_ = n.rc.SetWriteDeadline(time.Now().Add(writeWait))
	if _, err := n.w.Write(line); err != nil {
		return err
	}
	return n.rc.Flush()
}
