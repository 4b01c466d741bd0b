package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// History backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	History struct {
		Backend string `yaml:"backend"`
	} `yaml:"history"`
	Trivia struct {
		URL         string `yaml:"url"`
		Amount      int    `yaml:"amount"`
		Timeout     string `yaml:"timeout"`
		MinInterval string `yaml:"min_interval"`
	} `yaml:"trivia"`
	Log struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// HistoryBackend returns the configured backend, inferring one from the
// connection settings when none is named: postgres, then redis, then memory.
func (c Config) HistoryBackend() string {
	switch c.History.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
		return c.History.Backend
	}
	if c.Postgres.URL != "" {
		return BackendPostgres
	}
	if c.Redis.Addr != "" {
		return BackendRedis
	}
	return BackendMemory
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
