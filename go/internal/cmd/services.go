package main

import (
	"context"
	"time"

	"github.com/mcdev12/sabotage/go/clients/generator_client"
	"github.com/mcdev12/sabotage/go/clients/judge_client"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/gateway"
	"github.com/mcdev12/sabotage/go/internal/game/orchestrator"
	"github.com/mcdev12/sabotage/go/internal/game/stream"
	"github.com/mcdev12/sabotage/go/internal/store"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Connections  *gateway.ConnectionManager
	Gateway      *gateway.Service
	Orchestrator *orchestrator.Orchestrator
	Mirror       *stream.Mirror

	closers []func()
}

func setupServices(ctx context.Context, cfg *Config, st store.Store) *Services {
	// Wire up dependency injection chain
	// Connections → (stream mirror) → Orchestrator → Gateway
	services := &Services{}

	services.Connections = gateway.NewConnectionManager(gateway.DefaultConfig().ConnectionConfig)

	var broadcaster events.Broadcaster = services.Connections
	if cfg.NatsURL != "" {
		jsCfg := stream.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NatsURL

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		publisher, err := stream.NewJetStreamPublisher(connectCtx, jsCfg)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("url", cfg.NatsURL).Msg("event stream disabled")
		} else {
			services.Mirror = stream.NewMirror(services.Connections, publisher, 0)
			services.closers = append(services.closers, func() { publisher.Close() })
			broadcaster = services.Mirror
			log.Info().Str("stream", jsCfg.StreamName).Msg("mirroring game events to JetStream")
		}
	}

	// Interfaces stay nil when a service is not configured so the
	// orchestrator uses its local fallbacks.
	var judge orchestrator.Judge
	if cfg.JudgeURL != "" {
		judge = judge_client.NewJudgeClient(cfg.JudgeURL, cfg.JudgeAPIKey)
	} else {
		log.Warn().Msg("JUDGE_URL not set, using local judge fallback")
	}

	var generator orchestrator.Generator
	if cfg.GeneratorURL != "" {
		generator = generator_client.NewGeneratorClient(cfg.GeneratorURL, cfg.GeneratorAPIKey)
	} else {
		log.Warn().Msg("GENERATOR_URL not set, using canned tasks")
	}

	services.Orchestrator = orchestrator.NewOrchestrator(cfg.Game, st, broadcaster, judge, generator, nil)
	services.Gateway = gateway.NewService(services.Connections, services.Orchestrator)

	return services
}

// Start launches the background workers. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	s.Orchestrator.Start(ctx)
	go s.Gateway.Start(ctx)
	if s.Mirror != nil {
		go s.Mirror.Run(ctx)
	}
}

func (s *Services) Close() {
	for _, c := range s.closers {
		c()
	}
}
