// Package config loads the scheduler's JSON configuration file, writing a
// default one on first run, merging missing keys from the default document,
// and validating the result.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
)

type DBConfig struct {
	Host           string `json:"host" validate:"required"`
	Port           int    `json:"port" validate:"required"`
	User           string `json:"user" validate:"required"`
	Database       string `json:"database" validate:"required"`
	PoolSize       int    `json:"pool_size" validate:"min=1,max=50"`
	ConnectTimeout int    `json:"connect_timeout" validate:"min=1"`

	// password and url are never read from config.json; they arrive only
	// through DB_PASSWORD / DATABASE_URL in the environment.
	password string
	url      string
}

// URL returns the connection string built from host/port/user/database and
// the DB_PASSWORD secret, or the DATABASE_URL override if one was set.
func (d DBConfig) URL() string {
	if d.url != "" {
		return d.url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=%d",
		d.User, d.password, d.Host, d.Port, d.Database, d.ConnectTimeout)
}

type SchedulerConfig struct {
	PollIntervalSec  int    `json:"poll_interval_sec" validate:"min=1,max=3600"`
	Batch            int    `json:"batch" validate:"min=1,max=1000"`
	SessionTimeZone  string `json:"mysql_session_time_zone" validate:"required"`
	DefaultTimezone  string `json:"default_timezone" validate:"required"`
	LogFile          string `json:"log_file"`
	RotateMaxSizeMB  int    `json:"rotate_max_size_mb" validate:"min=1"`
	RotateMaxBackups int    `json:"rotate_max_backups" validate:"min=0"`
	ControlEnabled   bool   `json:"control_enabled"`
	ControlHost      string `json:"control_host" validate:"required"`
	ControlPort      int    `json:"control_port" validate:"required"`
	ControlToken     string `json:"control_token"`
	NotifyOnPause    bool   `json:"notify_on_pause"`
}

type MQTTConfig struct {
	Host           string `json:"host" validate:"required"`
	Port           int    `json:"port" validate:"required"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	ClientIDPrefix string `json:"client_id_prefix"`
	KeepaliveSec   int    `json:"keepalive" validate:"min=1"`
	TLS            bool   `json:"tls"`
}

type HTTPConfig struct {
	UserAgent string `json:"user_agent" validate:"required"`
	VerifyTLS bool   `json:"verify_tls"`
}

type NotifyConfig struct {
	OpsEmail string `json:"ops_email"`
	FromAddr string `json:"from_addr"`

	// resendAPIKey never comes from config.json; it arrives only through
	// the RESEND_API_KEY environment secret.
	resendAPIKey string
}

// ResendAPIKey returns the RESEND_API_KEY secret layered onto this config.
func (n NotifyConfig) ResendAPIKey() string {
	return n.resendAPIKey
}

type Config struct {
	DB        DBConfig        `json:"db" validate:"required"`
	Scheduler SchedulerConfig `json:"scheduler" validate:"required"`
	MQTT      MQTTConfig      `json:"mqtt" validate:"required"`
	HTTP      HTTPConfig      `json:"http" validate:"required"`
	Notify    NotifyConfig    `json:"notify"`

	// Env selects the logging/notification style: "local" for human-readable
	// console output and a logging notifier, anything else for JSON logs and,
	// when notify_on_pause is set, a live Resend notifier. Set via the ENV
	// secret, not the JSON file.
	Env string `json:"-" validate:"required,oneof=local staging production"`
}

// DefaultConfig mirrors the defaults an operator gets on first run.
var DefaultConfig = Config{
	DB: DBConfig{
		Host: "127.0.0.1", Port: 5432, User: "jj", Database: "smartcare",
		PoolSize: 5, ConnectTimeout: 10,
	},
	Scheduler: SchedulerConfig{
		PollIntervalSec: 2, Batch: 20,
		SessionTimeZone: "+08:00", DefaultTimezone: "Asia/Taipei",
		LogFile: "", RotateMaxSizeMB: 2, RotateMaxBackups: 5,
		ControlEnabled: true, ControlHost: "127.0.0.1", ControlPort: 5055,
		ControlToken: "CHANGE_ME", NotifyOnPause: false,
	},
	MQTT: MQTTConfig{
		Host: "broker.emqx.io", Port: 1883, ClientIDPrefix: "sched-",
		KeepaliveSec: 30, TLS: false,
	},
	HTTP: HTTPConfig{UserAgent: "jjscheduler/1.0", VerifyTLS: true},
}

// Load reads path, writing DefaultConfig there first if it doesn't exist,
// deep-merges any keys missing from the file, layers secrets from the
// environment on top, and validates the result.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		data, err := json.MarshalIndent(DefaultConfig, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		logger.Warn("config file not found, created default", "path", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	mergeDefaults(&cfg)

	secrets, err := loadSecrets()
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	applySecrets(&cfg, secrets)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// mergeDefaults fills in zero-valued fields left over from a config file
// written before a new field existed, so upgrading the binary never breaks
// on an older config.json missing newer keys.
func mergeDefaults(cfg *Config) {
	if cfg.DB.PoolSize == 0 {
		cfg.DB.PoolSize = DefaultConfig.DB.PoolSize
	}
	if cfg.DB.ConnectTimeout == 0 {
		cfg.DB.ConnectTimeout = DefaultConfig.DB.ConnectTimeout
	}
	if cfg.Scheduler.PollIntervalSec == 0 {
		cfg.Scheduler.PollIntervalSec = DefaultConfig.Scheduler.PollIntervalSec
	}
	if cfg.Scheduler.Batch == 0 {
		cfg.Scheduler.Batch = DefaultConfig.Scheduler.Batch
	}
	if cfg.Scheduler.SessionTimeZone == "" {
		cfg.Scheduler.SessionTimeZone = DefaultConfig.Scheduler.SessionTimeZone
	}
	if cfg.Scheduler.DefaultTimezone == "" {
		cfg.Scheduler.DefaultTimezone = DefaultConfig.Scheduler.DefaultTimezone
	}
	if cfg.Scheduler.RotateMaxSizeMB == 0 {
		cfg.Scheduler.RotateMaxSizeMB = DefaultConfig.Scheduler.RotateMaxSizeMB
	}
	if cfg.Scheduler.ControlHost == "" {
		cfg.Scheduler.ControlHost = DefaultConfig.Scheduler.ControlHost
	}
	if cfg.Scheduler.ControlPort == 0 {
		cfg.Scheduler.ControlPort = DefaultConfig.Scheduler.ControlPort
	}
	if cfg.MQTT.Host == "" {
		cfg.MQTT.Host = DefaultConfig.MQTT.Host
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = DefaultConfig.MQTT.Port
	}
	if cfg.MQTT.ClientIDPrefix == "" {
		cfg.MQTT.ClientIDPrefix = DefaultConfig.MQTT.ClientIDPrefix
	}
	if cfg.MQTT.KeepaliveSec == 0 {
		cfg.MQTT.KeepaliveSec = DefaultConfig.MQTT.KeepaliveSec
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultConfig.HTTP.UserAgent
	}
}

// SlogLevel always returns Info; the scheduler does not expose a separate
// log-level knob beyond Env (kept consistent with the rest of the ambient
// stack rather than adding a config key nothing in this system needs).
func (c *Config) SlogLevel() slog.Level {
	return slog.LevelInfo
}
