package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSNotifier shares change signals between server replicas over a NATS
// subject. Local writes are signalled directly; the subject only carries
// signals to other connections.
type NATSNotifier struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	changes chan struct{}
	logger  zerolog.Logger
}

// NewNATSNotifier connects to url and subscribes to subject
func NewNATSNotifier(url, subject string, logger zerolog.Logger) (*NATSNotifier, error) {
	logger = logger.With().Str("component", "nats_notifier").Logger()

	opts := []nats.Option{
		nats.Name("roulette"),
		nats.NoEcho(),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	n := &NATSNotifier{
		nc:      nc,
		subject: subject,
		changes: make(chan struct{}, 1),
		logger:  logger,
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		signal(n.changes)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	n.sub = sub

	logger.Info().Str("subject", subject).Msg("listening for change signals")
	return n, nil
}

// Publish implements Notifier
func (n *NATSNotifier) Publish(ctx context.Context) error {
	signal(n.changes)
	if err := n.nc.Publish(n.subject, nil); err != nil {
		return fmt.Errorf("publish change signal: %w", err)
	}
	return nil
}

// Changes implements Notifier
func (n *NATSNotifier) Changes() <-chan struct{} {
	return n.changes
}

// Close implements Notifier
func (n *NATSNotifier) Close() error {
	if n.sub != nil {
		if err := n.sub.Unsubscribe(); err != nil && n.nc.IsConnected() {
			n.logger.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}
	n.nc.Close()
	return nil
}
