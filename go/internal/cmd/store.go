package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/sabotage/go/internal/dbconfig"
	"github.com/mcdev12/sabotage/go/internal/store"
	"github.com/rs/zerolog/log"
)

// setupStore opens the configured backend. The returned closer releases
// its connections.
func setupStore(ctx context.Context, backend string) (store.Store, func(), error) {
	switch backend {
	case "", "memory":
		log.Info().Msg("using in-memory store")
		return store.NewMemory(), func() {}, nil

	case "redis":
		cfg := dbconfig.NewRedisConfigFromEnv()
		st, err := store.NewRedis(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info().Str("addr", cfg.Addr).Msg("connected to redis")
		return st, func() {
			if err := st.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis")
			}
		}, nil

	case "postgres":
		cfg := dbconfig.NewConfigFromEnv()
		st, err := store.NewPostgres(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Msg("connected to database")
		return st, st.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", backend)
}
