package config

import (
	"fmt"
	"os"
)

// Config is the process configuration, environment-driven like every other
// deployment knob in this stack.
type Config struct {
	HTTPAddr    string
	DatabaseURL string

	// JobSecret gates the /api/jobs endpoints. Empty keeps them closed.
	JobSecret string

	// SecretKey derives the credential vault key.
	SecretKey string

	// RedisAddr enables cross-process site locking when set.
	RedisAddr string

	// NATSURL enables event publishing when set.
	NATSURL string

	// ProbeConfigPath points at the optional YAML probe tuning file.
	ProbeConfigPath string
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JobSecret:       os.Getenv("JOB_SECRET"),
		SecretKey:       os.Getenv("SECRET_KEY"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		NATSURL:         os.Getenv("NATS_URL"),
		ProbeConfigPath: os.Getenv("PROBE_CONFIG"),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
