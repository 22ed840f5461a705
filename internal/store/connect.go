package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"roulette/internal/config"
	"roulette/internal/domain"
)

// Connect opens the configured driver and change notifier. A failure here is
// meant to be fatal to the server; there is no offline mode.
func Connect(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (Gateway, error) {
	opts := DefaultOptions()
	if cfg.ResyncInterval > 0 {
		opts.ResyncInterval = cfg.ResyncInterval
	}
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, unavailable(err)
		}
		notifier, err := newNotifier(cfg, logger)
		if err != nil {
			_ = db.Close()
			return nil, unavailable(err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Str("notifier", cfg.Notifier).Msg("connected to sqlite store")
		return NewSQLiteGateway(db, notifier, opts, logger), nil

	case config.DriverPostgres:
		pool, err := ConnectPostgres(ctx, cfg.DSN())
		if err != nil {
			return nil, unavailable(err)
		}
		notifier, err := newNotifier(cfg, logger)
		if err != nil {
			pool.Close()
			return nil, unavailable(err)
		}
		logger.Info().
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Str("notifier", cfg.Notifier).
			Msg("connected to postgres store")
		return NewPostgresGateway(pool, notifier, opts, logger), nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func newNotifier(cfg config.StoreConfig, logger zerolog.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierLocal, "":
		return NewLocalNotifier(), nil
	case config.NotifierPQ:
		n, err := NewPQNotifier(cfg.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return n, nil
	case config.NotifierNATS:
		n, err := NewNATSNotifier(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown change notifier %q", cfg.Notifier)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
