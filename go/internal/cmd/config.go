package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/mcdev12/sabotage/go/internal/game/orchestrator"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string
	StoreBackend string
	NatsURL      string

	JudgeURL        string
	JudgeAPIKey     string
	GeneratorURL    string
	GeneratorAPIKey string

	Game orchestrator.Config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig() (*Config, error) {
	game, err := loadGameConfig(getEnv("GAME_CONFIG", "config.yaml"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		StoreBackend:    getEnv("STORE_BACKEND", "memory"),
		NatsURL:         getEnv("NATS_URL", ""),
		JudgeURL:        getEnv("JUDGE_URL", ""),
		JudgeAPIKey:     getEnv("JUDGE_API_KEY", ""),
		GeneratorURL:    getEnv("GENERATOR_URL", ""),
		GeneratorAPIKey: getEnv("GENERATOR_API_KEY", ""),
		Game:            game,
	}, nil
}

// loadGameConfig overlays the yaml tuning file on the defaults. A missing
// file leaves the defaults in place. ROUND_SECONDS and MAX_ROUNDS win over
// both.
func loadGameConfig(path string) (orchestrator.Config, error) {
	config := orchestrator.DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("game config not found, using defaults")
	case err != nil:
		return config, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.RoundSeconds = getEnvAsInt("ROUND_SECONDS", config.RoundSeconds)
	config.MaxRounds = getEnvAsInt("MAX_ROUNDS", config.MaxRounds)

	return config, nil
}
