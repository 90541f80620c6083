package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ClientConfig configures the tutor client.
type ClientConfig struct {
	BaseURL              string        `env:"CHATFLOW_BASE_URL" envDefault:"http://localhost:8080"`
	Account              string        `env:"CHATFLOW_ACCOUNT" envDefault:"ai-tutor"`
	Timeout              time.Duration `env:"CHATFLOW_TIMEOUT" envDefault:"30s"`
	PollInterval         time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SessionCheckInterval time.Duration `env:"SESSION_CHECK_INTERVAL" envDefault:"1s"`
	HistoryPageSize      int           `env:"HISTORY_PAGE_SIZE" envDefault:"5"`
	SessionStore         string        `env:"SESSION_STORE" envDefault:"sqlite"`
	DataDir              string        `env:"DATA_DIR" envDefault:"./chatflow-tutor"`
	MetricsAddr          string        `env:"METRICS_ADDR" envDefault:""`
	LogFile              string        `env:"LOG_FILE" envDefault:""`
}

const (
	StoreSQLite = "sqlite"
	StorePebble = "pebble"
	StoreMemory = "memory"
)

// MockServerConfig configures the development chat-flow server.
type MockServerConfig struct {
	Port       int           `env:"PORT" envDefault:"8080"`
	Root       string        `env:"ROOT" envDefault:"./mockflow"`
	PublicURL  string        `env:"PUBLIC_URL" envDefault:""`
	ReplyDelay time.Duration `env:"REPLY_DELAY" envDefault:"2s"`
}

func (c ClientConfig) Validate() error {
	switch c.SessionStore {
	case StoreSQLite, StorePebble, StoreMemory:
	default:
		return fmt.Errorf("invalid SESSION_STORE '%s': must be one of sqlite, pebble, memory", c.SessionStore)
	}
	if c.Account == "" {
		return fmt.Errorf("CHATFLOW_ACCOUNT must be set")
	}
	if c.HistoryPageSize <= 0 {
		return fmt.Errorf("invalid HISTORY_PAGE_SIZE %d: must be positive", c.HistoryPageSize)
	}
	return nil
}

func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func LoadMockServerConfig() (MockServerConfig, error) {
	var cfg MockServerConfig
	if err := env.Parse(&cfg); err != nil {
		return MockServerConfig{}, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads variables from path into the process environment.
// Variables already set are not overridden. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		log.Printf("no env file specified, using os.Environ only")
		return nil
	}

	log.Printf("loading env from file %s", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading .env file '%s': %w", path, err)
	}
	return nil
}

// SetupLogFile sends the standard logger, and with it the default slog
// handler, to path and optionally stderr. The returned file must be closed
// by the caller; it is nil when path is empty.
func SetupLogFile(path string, stderr bool) (*os.File, error) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if path == "" {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	if stderr {
		log.SetOutput(io.MultiWriter(f, os.Stderr))
	} else {
		log.SetOutput(f)
	}
	return f, nil
}
