package feed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"xraas_nd/internal/ndalert"
)

// DefaultSubject is the subject the simulator bridge publishes on.
const DefaultSubject = "xraas.nd_alert"

// Handler receives every reading with its decode result.
type Handler func(ctx context.Context, r Reading, alert ndalert.Alert, ok bool)

// Config holds the subscriber settings.
type Config struct {
	URL           string
	Subject       string
	Queue         string // optional queue group
	DefaultSource string // source for payloads that name none

	// DrainTimeout bounds the drain on shutdown. Zero means 10s.
	DrainTimeout time.Duration
}

// Stats counts what the subscriber has seen.
type Stats struct {
	Received  uint64
	Decoded   uint64
	Idle      uint64 // values that did not decode
	Malformed uint64
}

// Subscriber decodes bus values received on a NATS subject.
type Subscriber struct {
	cfg     Config
	handler Handler
	log     *logrus.Entry

	received  atomic.Uint64
	decoded   atomic.Uint64
	idle      atomic.Uint64
	malformed atomic.Uint64
}

// NewSubscriber creates a subscriber. Missing subject and source fall back
// to DefaultSubject and the subject name.
func NewSubscriber(cfg Config, handler Handler, log *logrus.Entry) *Subscriber {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = cfg.Subject
	}
	return &Subscriber{cfg: cfg, handler: handler, log: log}
}

// Run connects to NATS and processes messages until ctx is cancelled.
// It then drains the connection and returns once every pending message
// has been handled.
func (s *Subscriber) Run(ctx context.Context) error {
	closed := make(chan struct{})
	nc, err := nats.Connect(s.cfg.URL,
		nats.Name("xraas-nd-decoder"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DrainTimeout(s.drainTimeout()),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.log.WithError(err).Warn("disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.log.WithField("url", nc.ConnectedUrl()).Info("reconnected to NATS")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	cb := s.callback(ctx)
	if s.cfg.Queue != "" {
		_, err = nc.QueueSubscribe(s.cfg.Subject, s.cfg.Queue, cb)
	} else {
		_, err = nc.Subscribe(s.cfg.Subject, cb)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}

	s.log.WithFields(logrus.Fields{
		"url":     s.cfg.URL,
		"subject": s.cfg.Subject,
	}).Info("listening for ND alert values")

	select {
	case <-ctx.Done():
	case <-closed:
		return errors.New("nats connection closed")
	}

	if err := nc.Drain(); err != nil {
		return fmt.Errorf("drain connection: %w", err)
	}
	<-closed
	return nil
}

func (s *Subscriber) drainTimeout() time.Duration {
	if s.cfg.DrainTimeout > 0 {
		return s.cfg.DrainTimeout
	}
	return 10 * time.Second
}

// callback builds the message handler. Handlers get a context that is
// not cancelled with ctx, so messages delivered while draining are still
// stored.
func (s *Subscriber) callback(ctx context.Context) nats.MsgHandler {
	hctx := context.WithoutCancel(ctx)
	return func(m *nats.Msg) {
		s.HandleMessage(hctx, m.Data)
	}
}

// HandleMessage parses, decodes and dispatches a single payload.
func (s *Subscriber) HandleMessage(ctx context.Context, data []byte) {
	s.received.Add(1)

	r, err := ParseReading(data, s.cfg.DefaultSource, time.Now())
	if err != nil {
		s.malformed.Add(1)
		s.log.WithError(err).WithField("payload", string(data)).Debug("malformed payload")
		return
	}

	alert, ok := ndalert.Decode(r.Value)
	if ok {
		s.decoded.Add(1)
	} else {
		s.idle.Add(1)
	}

	if s.handler != nil {
		s.handler(ctx, r, alert, ok)
	}
}

// Stats returns the current counters.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Received:  s.received.Load(),
		Decoded:   s.decoded.Load(),
		Idle:      s.idle.Load(),
		Malformed: s.malformed.Load(),
	}
}
