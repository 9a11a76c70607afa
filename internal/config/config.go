package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type APIConfig struct {
	Addr            string
	DatabaseURL     string
	FallbackDBPath  string
	UniversePath    string
	DiscordToken    string
	DiscordChannel  string
	MiningRatePerKH float64
}

type WorkerConfig struct {
	DatabaseURL     string
	FallbackDBPath  string
	UniversePath    string
	TickCron        string
	RunOnce         bool
	DiscordToken    string
	DiscordChannel  string
	MiningRatePerKH float64
}

type CLIConfig struct {
	DBPath          string
	UniversePath    string
	APIBaseURL      string
	MiningRatePerKH float64
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("FORTUNA_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		FallbackDBPath:  envDefault("FORTUNA_FALLBACK_DB", ""),
		UniversePath:    envDefault("FORTUNA_UNIVERSE_FILE", ""),
		DiscordToken:    strings.TrimSpace(os.Getenv("FORTUNA_DISCORD_TOKEN")),
		DiscordChannel:  strings.TrimSpace(os.Getenv("FORTUNA_DISCORD_CHANNEL")),
		MiningRatePerKH: envFloatDefault("FORTUNA_MINING_RATE", 0.001),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		FallbackDBPath:  envDefault("FORTUNA_FALLBACK_DB", ""),
		UniversePath:    envDefault("FORTUNA_UNIVERSE_FILE", ""),
		TickCron:        envDefault("FORTUNA_TICK_CRON", "@every 5m"),
		RunOnce:         envBoolDefault("FORTUNA_WORKER_RUN_ONCE", false),
		DiscordToken:    strings.TrimSpace(os.Getenv("FORTUNA_DISCORD_TOKEN")),
		DiscordChannel:  strings.TrimSpace(os.Getenv("FORTUNA_DISCORD_CHANNEL")),
		MiningRatePerKH: envFloatDefault("FORTUNA_MINING_RATE", 0.001),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		DBPath:          envDefault("FORTUNA_DB", defaultCLIDBPath()),
		UniversePath:    envDefault("FORTUNA_UNIVERSE_FILE", ""),
		APIBaseURL:      strings.TrimRight(envDefault("FORTUNA_API_BASE_URL", "http://localhost:8080"), "/"),
		MiningRatePerKH: envFloatDefault("FORTUNA_MINING_RATE", 0.001),
	}
}

func defaultCLIDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fortuna.db"
	}
	return filepath.Join(home, ".fortuna", "fortuna.db")
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
