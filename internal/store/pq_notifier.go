package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// ChangeChannel is the Postgres NOTIFY channel fired by the records trigger
const ChangeChannel = "records_changed"

// PQNotifier receives change signals from Postgres LISTEN/NOTIFY. Writes are
// announced by a trigger, so Publish does nothing and changes made by other
// processes are seen as well.
type PQNotifier struct {
	listener     *pq.Listener
	changes      chan struct{}
	done         chan struct{}
	exited       chan struct{}
	pingInterval time.Duration
	logger       zerolog.Logger
}

// NewPQNotifier opens a dedicated LISTEN connection to dsn
func NewPQNotifier(dsn string, logger zerolog.Logger) (*PQNotifier, error) {
	logger = logger.With().Str("component", "pq_notifier").Logger()

	l := pq.NewListener(
		dsn,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(ChangeChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	logger.Info().Str("channel", ChangeChannel).Msg("listening for notifications")

	n := &PQNotifier{
		listener:     l,
		changes:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		exited:       make(chan struct{}),
		pingInterval: 90 * time.Second,
		logger:       logger,
	}
	go n.loop()
	return n, nil
}

func (n *PQNotifier) loop() {
	defer close(n.exited)

	pingTicker := time.NewTicker(n.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-n.done:
			return
		case note := <-n.listener.Notify:
			// A nil notification means the connection was re-established and
			// notifications may have been lost, so it still counts as a change.
			if note == nil {
				n.logger.Debug().Msg("listener reconnected")
			}
			signal(n.changes)
		case <-pingTicker.C:
			if err := n.listener.Ping(); err != nil {
				n.logger.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Publish implements Notifier
func (n *PQNotifier) Publish(ctx context.Context) error {
	return nil
}

// Changes implements Notifier
func (n *PQNotifier) Changes() <-chan struct{} {
	return n.changes
}

// Close implements Notifier
func (n *PQNotifier) Close() error {
	select {
	case <-n.done:
		return nil
	default:
		close(n.done)
	}
	<-n.exited
	return n.listener.Close()
}
