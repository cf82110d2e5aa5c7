package main

import (
	"net/http"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// app owns the process-wide state: one bus and one rate limiter shared by
// every request.
type app struct {
	cfg     Config
	clock   clock.Clock
	log     zerolog.Logger
	m       *metrics
	hub     *hub
	limiter *rateLimiter
	sender  *sender
	id      *cookieIdentity
}

func newApp(cfg Config, clk clock.Clock, log zerolog.Logger, m *metrics) *app {
	a := &app{
		cfg:     cfg,
		clock:   clk,
		log:     log,
		m:       m,
		hub:     newHub(cfg.SubscriberBuffer, m),
		limiter: newRateLimiter(),
		id:      newCookieIdentity(cfg.Cookie.Name, cfg.Cookie.Secret),
	}
	a.sender = newSender(
		a.hub,
		trackedLimiter{a.limiter, m},
		clk,
		cfg.Topic,
		cfg.RateLimit,
		log.With().Str("component", "sender").Logger(),
		m,
	)
	return a
}

func (a *app) handler() http.Handler {
	lh := listenHandler{
		bus:      a.hub,
		topic:    a.cfg.Topic,
		clock:    a.clock,
		interval: a.cfg.Keepalive,
		m:        a.m,
	}

	handler := mux.NewRouter()
	handler.Use(
		hlog.NewHandler(a.log.With().Str("component", "http").Logger()),
		hlog.MethodHandler("method"),
		hlog.URLHandler("url"),
		hlog.RemoteAddrHandler("remote"),
	)

	// Route websocket requests
	handler.Path("/listen").
		HeadersRegexp(
			"Connection", "(?i)upgrade",
			"Upgrade", "(?i)^websocket$",
		).
		Handler(newWsHandler(lh, a.sender, a.id, a.cfg.Origin))

	handler.Path("/listen").Handler(lh)
	handler.Path("/send").Handler(sendHandler{s: a.sender, id: a.id})
	handler.Path("/signin").Methods(http.MethodPost).Handler(signinHandler{id: a.id})
	handler.Path("/debug/metrics").Methods(http.MethodGet).Handler(metricsHandler{m: a.m})
	handler.Path("/").Methods(http.MethodGet).Handler(pageHandler{id: a.id})

	return handler
}

// trackedLimiter publishes the limiter's key count after every admit.
type trackedLimiter struct {
	l *rateLimiter
	m *metrics
}

func (t trackedLimiter) tryAdmit(key string, now time.Time, minInterval time.Duration) bool {
	ok := t.l.tryAdmit(key, now, minInterval)
	if ok {
		t.m.gauge("ratelimit.keys", int64(t.l.size()))
	} else {
		t.m.mark("ratelimit.rejected", 1)
	}
	return ok
}
