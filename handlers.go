package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type sendHandler struct {
	s  *sender
	id identifier
}

func (sh sendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := sh.id.user(r)
	_, err := sh.s.send(outgoing{
		key:      forwardedKey(r),
		method:   r.Method,
		user:     user,
		signedIn: ok,
		body:     r.Body,
	})
	if err != nil {
		sendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("sent message"))
}

// listenHandler holds what a session needs besides its transport.
type listenHandler struct {
	bus      broker
	topic    string
	clock    clock.Clock
	interval time.Duration
	m        *metrics
}

func (lh listenHandler) session(w frameWriter, log zerolog.Logger) *session {
	return &session{
		bus:      lh.bus,
		topic:    lh.topic,
		clock:    lh.clock,
		interval: lh.interval,
		w:        w,
		log:      log,
		m:        lh.m,
	}
}

func (lh listenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r).With().Str("transport", "ndjson").Logger()
	err := lh.session(newNDJSONWriter(w), log).run(r.Context())
	if err != nil {
		// The listener went away mid-write.
		log.Debug().Err(err).Msg("listen ended")
	}
}

type wsHandler struct {
	lh       listenHandler
	s        *sender
	id       identifier
	upgrader *websocket.Upgrader
}

func newWsHandler(lh listenHandler, s *sender, id identifier, origin string) wsHandler {
	upgrader := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if origin != "" {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return strings.EqualFold(r.Header.Get("Origin"), origin)
		}
	}
	return wsHandler{lh: lh, s: s, id: id, upgrader: upgrader}
}

func (wsh wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r).With().Str("transport", "websocket").Logger()
	ws, err := wsh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	wsm := websocketInteractor{ws: ws}
	defer wsm.wsClose()

	user, signedIn := wsh.id.user(r)
	c := &wsPublisher{
		w:        wsm,
		s:        wsh.s,
		key:      forwardedKey(r),
		user:     user,
		signedIn: signedIn,
		log:      log,
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		c.reader()
	}()

	if err := wsh.lh.session(wsFrameWriter{w: wsm}, log).run(ctx); err != nil {
		log.Debug().Err(err).Msg("listen ended")
	}
}

// wsPublisher turns inbound websocket text messages into publish attempts.
type wsPublisher struct {
	w        websocketManager
	s        *sender
	key      string
	user     string
	signedIn bool
	log      zerolog.Logger
}

// reader returns when the peer closes or the connection fails.
func (c *wsPublisher) reader() {
	c.w.wsSetReadLimit()
	for {
		if err := c.readMessage(); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				c.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

func (c *wsPublisher) readMessage() error {
	messageType, payload, err := c.w.wsReadMessage()
	if err != nil {
		return err
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	_, err = c.s.send(outgoing{
		key:      c.key,
		method:   http.MethodPost,
		user:     c.user,
		signedIn: c.signedIn,
		body:     bytes.NewReader(payload),
	})
	if err != nil {
		c.log.Debug().Err(err).Msg("websocket send rejected")
	}
	return nil
}

type pageHandler struct {
	id identifier
}

func (ph pageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := ph.id.user(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, pageArgs{User: user, SignedIn: ok}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render page")
	}
}

type signinHandler struct {
	id identifier
}

func (sh signinHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendError(w, errInvalidName)
		return
	}
	if err := sh.id.signIn(w, r.PostForm.Get("name")); err != nil {
		if !errors.Is(err, errInvalidName) {
			hlog.FromRequest(r).Error().Err(err).Msg("sign in")
		}
		sendError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type metricsHandler struct {
	m *metrics
}

func (mh metricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	mh.m.writeTo(w)
}
