package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colorgrid/internal/game"
)

// Connect dials NATS with reconnect handling. Echo must stay enabled on the
// connection: the protocol relies on publishers receiving their own events.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATS is a room channel over a core NATS subject. Core NATS (not JetStream)
// matches the transport contract: no durable history, best-effort fan-out.
type NATS struct {
	nc      *nats.Conn
	subject string

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewNATS wraps an existing connection as the channel for roomCode. The
// caller retains ownership of the connection.
func NewNATS(nc *nats.Conn, roomCode string) *NATS {
	return &NATS{nc: nc, subject: Subject(roomCode)}
}

func (c *NATS) Publish(ctx context.Context, ev game.Event) error {
	data, err := json.Marshal(game.Wrap(ev))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := c.nc.Publish(c.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (c *NATS) Subscribe(ctx context.Context, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return fmt.Errorf("already subscribed to %s", c.subject)
	}

	sub, err := c.nc.Subscribe(c.subject, func(msg *nats.Msg) {
		var env game.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Warn().Err(err).Str("subject", c.subject).Msg("dropping malformed message")
			return
		}
		if env.Type != game.EnvelopeType {
			return
		}
		h(env.Payload)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}

	// Flush round-trips to the server, so once it returns the subscription
	// is live. This is the readiness signal the session waits on before
	// announcing presence.
	if err := c.nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush subscription %s: %w", c.subject, err)
	}

	c.sub = sub
	return nil
}

func (c *NATS) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return nil
	}
	err := c.sub.Unsubscribe()
	c.sub = nil
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", c.subject, err)
	}
	return nil
}
