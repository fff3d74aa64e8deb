// Package config содержит логику чтения конфигурации сервиса столовой.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса столовой.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	RosterAddress  string `env:"ROSTER_ADDRESS"`
	AuthSecret     string `env:"AUTH_SECRET"`
	RosterInterval int    `env:"ROSTER_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRosterAddress := cfg.RosterAddress
	envAuthSecret := cfg.AuthSecret
	envRosterInterval := cfg.RosterInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RosterAddress, "r", "", "institute roster registry address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for capability cookie verification")
	flag.IntVar(&cfg.RosterInterval, "i", 0, "roster sync interval in seconds")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRosterAddress != "" {
		cfg.RosterAddress = envRosterAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envRosterInterval != 0 {
		cfg.RosterInterval = envRosterInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.RosterInterval <= 0 {
		cfg.RosterInterval = 300
	}

	return cfg, nil
}
