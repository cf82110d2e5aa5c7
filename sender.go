package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/facebookgo/clock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTopic        = "chat"
	defaultSendInterval = time.Second
)

// outgoing is one publish attempt as the transport saw it.
type outgoing struct {
	key      string // rate limit key
	method   string
	user     string
	signedIn bool
	body     io.Reader
}

type sendBody struct {
	Body string `validate:"required"`
}

// sender validates publish attempts and hands accepted messages to the bus.
type sender struct {
	bus      broker
	limiter  admitter
	clock    clock.Clock
	newID    func() string
	topic    string
	interval time.Duration
	validate *validator.Validate
	log      zerolog.Logger
	m        *metrics
}

func newSender(bus broker, limiter admitter, clk clock.Clock, topic string, interval time.Duration, log zerolog.Logger, m *metrics) *sender {
	if topic == "" {
		topic = defaultTopic
	}
	if interval <= 0 {
		interval = defaultSendInterval
	}
	return &sender{
		bus:      bus,
		limiter:  limiter,
		clock:    clk,
		newID:    uuid.NewString,
		topic:    topic,
		interval: interval,
		validate: validator.New(),
		log:      log,
		m:        m,
	}
}

// send charges the rate limit before anything else, so a rejected or
// malformed attempt still counts against its key.
func (s *sender) send(o outgoing) (message, error) {
	if !s.limiter.tryAdmit(o.key, s.clock.Now(), s.interval) {
		return s.reject(o, errRateLimited)
	}
	if o.method != http.MethodPost {
		return s.reject(o, errMethodNotAllowed)
	}
	if !o.signedIn {
		return s.reject(o, errNotAuthenticated)
	}

	body, err := s.decode(o.body)
	if err != nil {
		s.log.Debug().Err(err).Str("key", o.key).Msg("decode send body")
		return s.reject(o, errInvalidBody)
	}

	msg := newMessage(s.newID(), s.clock.Now(), o.user, body)
	delivered := s.bus.publish(s.topic, msg)
	s.m.incr("send.accepted", 1)
	s.log.Debug().
		Str("id", msg.ID).
		Str("user", msg.User).
		Int("delivered", delivered).
		Msg("message published")
	return msg, nil
}

func (s *sender) decode(r io.Reader) (string, error) {
	if r == nil {
		return "", io.EOF
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	// The whole payload must be one object and the key match exactly.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	field, ok := raw["body"]
	if !ok {
		return "", errors.New("missing body field")
	}
	var b sendBody
	if err := json.Unmarshal(field, &b.Body); err != nil {
		return "", err
	}
	if err := s.validate.Struct(b); err != nil {
		return "", err
	}
	return b.Body, nil
}

func (s *sender) reject(o outgoing, err error) (message, error) {
	s.m.incr("send.rejected", 1)
	s.log.Debug().Str("key", o.key).Str("reason", err.Error()).Msg("send rejected")
	return message{}, err
}
