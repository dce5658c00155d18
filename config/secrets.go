package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// secrets holds everything an operator should never commit to config.json.
type secrets struct {
	Env          string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	DBPassword   string `env:"DB_PASSWORD"`
	MQTTPassword string `env:"MQTT_PASSWORD"`
	ControlToken string `env:"CONTROL_TOKEN"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	DatabaseURL  string `env:"DATABASE_URL"`
}

func loadSecrets() (*secrets, error) {
	s := &secrets{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// applySecrets overlays environment-sourced values onto cfg, but only where
// the secret was actually set — an absent MQTT_PASSWORD or CONTROL_TOKEN
// must not blank out a value already present in config.json for local dev
// setups that don't split credentials out.
func applySecrets(cfg *Config, s *secrets) {
	cfg.Env = s.Env
	if s.DBPassword != "" {
		cfg.DB.password = s.DBPassword
	}
	if s.MQTTPassword != "" {
		cfg.MQTT.Password = s.MQTTPassword
	}
	if s.ControlToken != "" {
		cfg.Scheduler.ControlToken = s.ControlToken
	}
	if s.ResendAPIKey != "" {
		cfg.Notify.resendAPIKey = s.ResendAPIKey
	}
	if s.DatabaseURL != "" {
		cfg.DB.url = s.DatabaseURL
	}
}
