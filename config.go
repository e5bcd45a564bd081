package banklens

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banklens/banklens/extract"
)

// Config is the banklens configuration, loaded from banklens.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Extract   extract.Config  `yaml:"extract"`
	Retention RetentionConfig `yaml:"retention"`
	Telegram  TelegramConfig  `yaml:"telegram"`

	// Workers bounds concurrent statement parses in serve mode.
	Workers int `yaml:"workers"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db"`
}

// OllamaConfig configures the model backend.
type OllamaConfig struct {
	// Host is a hostname, host:port, or URL. The OLLAMA_HOST environment
	// variable overrides it.
	Host    string        `yaml:"host"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetentionConfig configures the built-in purge of old statements.
type RetentionConfig struct {
	// MaxAge is how long completed statements are kept. Zero disables the
	// built-in purge.
	MaxAge time.Duration `yaml:"max_age"`

	// Cron is the purge schedule. Empty means daily at 03:00.
	Cron string `yaml:"cron"`
}

// TelegramConfig configures completion notifications.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:   ":3001",
			DBPath: DefaultDBPath(),
		},
		Ollama: OllamaConfig{
			Host:    "host.docker.internal",
			Model:   "phi4",
			Timeout: 5 * time.Minute,
		},
		Extract: extract.Config{
			Backend:   extract.BackendCommand,
			Pdftotext: extract.DefaultPdftotext,
			Image:     extract.DefaultImage,
		},
		Retention: RetentionConfig{
			Cron: "0 3 * * *",
		},
		Workers: 2,
	}
}

// LoadConfig reads a yaml config file and applies environment overrides on
// top of defaults. An empty path returns the defaults with overrides applied.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("BANKLENS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides. OLLAMA_HOST mirrors the
// knob the dockerized deployment used.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama.model must not be empty")
	}
	switch c.Extract.Backend {
	case "", extract.BackendCommand, extract.BackendDocker:
	default:
		return fmt.Errorf("unknown extract backend %q", c.Extract.Backend)
	}
	if c.Retention.MaxAge < 0 {
		return fmt.Errorf("retention.max_age must not be negative")
	}
	return nil
}
