package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DBPath string `env:"DB_PATH" envDefault:"file:overwatch?mode=memory&cache=shared"`

	NATSEnabled bool   `env:"NATS_ENABLED" envDefault:"true"`
	NATSPort    int    `env:"NATS_PORT" envDefault:"4222"`
	NATSDataDir string `env:"NATS_DATA_DIR" envDefault:"./data/nats"`

	FeedInitialDelay time.Duration `env:"FEED_INITIAL_DELAY" envDefault:"10s"`
	FeedInterval     time.Duration `env:"FEED_INTERVAL" envDefault:"2m"`

	NoticeCapacity  int           `env:"NOTICE_CAPACITY" envDefault:"32"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads .env files when present, then the process environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (*Config, bool, error) {
	loaded := true
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("load env file: %w", err)
		}
		loaded = false
	}

	cfg, err := Parse()
	if err != nil {
		return nil, loaded, err
	}
	return cfg, loaded, nil
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.FeedInitialDelay <= 0 || c.FeedInterval <= 0 {
		return errors.New("feed delays must be positive")
	}
	if c.NoticeCapacity <= 0 {
		return errors.New("notice capacity must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	return nil
}
