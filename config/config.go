// Package config loads server configuration from defaults, an optional
// YAML file, a .env file and environment variables, in that order of
// increasing precedence. Command-line flags are applied on top by cmd/server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/workfacts/logging"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds static configuration (read-only after init).
type Config struct {
	Server ServerConfig   `yaml:"server,omitempty"`
	Store  StoreConfig    `yaml:"store,omitempty"`
	Log    logging.Config `yaml:"log,omitempty"`
	LLM    LLMConfig      `yaml:"llm,omitempty"`
	Notify NotifyConfig   `yaml:"notify,omitempty"`
}

type ServerConfig struct {
	Port            int           `yaml:"port,omitempty"`
	CORSOrigins     []string      `yaml:"cors_origins,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// StoreConfig selects the fact store. DSN is used by postgres, Path by
// sqlite.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"`
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// LLMConfig configures the optional extraction endpoint. Extraction is
// disabled when APIKey is empty.
type LLMConfig struct {
	Model   string `yaml:"model,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// NotifyConfig configures leave workflow notifications. Each sink is
// enabled only when its target is set.
type NotifyConfig struct {
	WebhookURL     string `yaml:"webhook_url,omitempty"`
	TelegramToken  string `yaml:"telegram_token,omitempty"`
	TelegramChatID int64  `yaml:"telegram_chat_id,omitempty"`
	QueueSize      int    `yaml:"queue_size,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5001,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "./data/workfacts.db",
		},
		Log: logging.Config{
			Level: "info",
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Notify: NotifyConfig{
			QueueSize: 64,
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when
// path is empty) and then the environment. A .env file in the working
// directory is loaded first if present. The result is not validated;
// callers apply their own overrides, then call Validate.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("WORKFACTS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WORKFACTS_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DSN = v
		if os.Getenv("WORKFACTS_DB_DRIVER") == "" {
			c.Store.Driver = DriverPostgres
		}
	}
	if v := os.Getenv("WORKFACTS_DB_DRIVER"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("WORKFACTS_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_DEV"); v != "" {
		c.Log.Dev = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("FRONTEND_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Notify.TelegramChatID = id
	}
	return nil
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("sqlite driver requires store.path")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("postgres driver requires store.dsn or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return errors.New("telegram_token set without telegram_chat_id")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
