package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds client connection settings.
type Config struct {
	ServerURL   string `yaml:"server_url"`
	Room        string `yaml:"room"`
	Token       string `yaml:"token"`
	DisplayName string `yaml:"display_name"`
	LogLevel    string `yaml:"log_level"`
}

// NewConfigFromEnv reads GOAT_* environment variables (with defaults) and,
// when GOAT_CONFIG names a yaml file, overlays its non-empty values first.
func NewConfigFromEnv() (Config, error) {
	cfg := Config{
		ServerURL: "ws://localhost:8080/ws",
		LogLevel:  "info",
	}

	if path := os.Getenv("GOAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ServerURL = getEnv("GOAT_SERVER_URL", cfg.ServerURL)
	cfg.Room = getEnv("GOAT_ROOM", cfg.Room)
	cfg.Token = getEnv("GOAT_TOKEN", cfg.Token)
	cfg.DisplayName = getEnv("GOAT_DISPLAY_NAME", cfg.DisplayName)
	cfg.LogLevel = getEnv("GOAT_LOG_LEVEL", cfg.LogLevel)

	if cfg.Room == "" {
		return Config{}, fmt.Errorf("GOAT_ROOM is required")
	}
	return cfg, nil
}

// ConnectionURL returns the websocket URL with room and session-token query
// parameters attached.
func (c Config) ConnectionURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("room", c.Room)
	if c.Token != "" {
		q.Set("token", c.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
