package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied through the accessor methods.
//
// Example (~/.threadline/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8090
// database:
//   path: ~/.threadline/threadline.db
// summarizer:
//   min_messages_for_summary: 10
//   summarize_every_n_messages: 10
//   max_messages_to_summarize: 50
//   temperature: 0.3
//   model: gpt-4o-mini
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

// SummarizerConfig controls when and how branch conversations get summarized.
type SummarizerConfig struct {
	MinMessagesForSummary   *int     `yaml:"min_messages_for_summary"`
	SummarizeEveryNMessages *int     `yaml:"summarize_every_n_messages"`
	MaxMessagesToSummarize  *int     `yaml:"max_messages_to_summarize"`
	Temperature             *float32 `yaml:"temperature"`
	Model                   *string  `yaml:"model"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8090

	DefaultMinMessagesForSummary   = 10
	DefaultSummarizeEveryNMessages = 10
	DefaultMaxMessagesToSummarize  = 50
	DefaultTemperature             = float32(0.3)
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".threadline")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.threadline/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	if cfg.MinMessagesForSummary() < 1 {
		return nil, "", fmt.Errorf("invalid summarizer.min_messages_for_summary %d in %s", cfg.MinMessagesForSummary(), configFile)
	}
	if cfg.SummarizeEveryNMessages() < 1 {
		return nil, "", fmt.Errorf("invalid summarizer.summarize_every_n_messages %d in %s", cfg.SummarizeEveryNMessages(), configFile)
	}
	if cfg.MaxMessagesToSummarize() < 1 {
		return nil, "", fmt.Errorf("invalid summarizer.max_messages_to_summarize %d in %s", cfg.MaxMessagesToSummarize(), configFile)
	}

	return cfg, configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// DatabasePath returns the sqlite database path, defaulting to
// ~/.threadline/threadline.db.
func (c *AppConfig) DatabasePath() string {
	if c != nil && c.Database.Path != nil && strings.TrimSpace(*c.Database.Path) != "" {
		return *c.Database.Path
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "threadline.db"
	}
	return filepath.Join(configDir, "threadline.db")
}

func (c *AppConfig) MinMessagesForSummary() int {
	if c == nil || c.Summarizer.MinMessagesForSummary == nil {
		return DefaultMinMessagesForSummary
	}
	return *c.Summarizer.MinMessagesForSummary
}

func (c *AppConfig) SummarizeEveryNMessages() int {
	if c == nil || c.Summarizer.SummarizeEveryNMessages == nil {
		return DefaultSummarizeEveryNMessages
	}
	return *c.Summarizer.SummarizeEveryNMessages
}

func (c *AppConfig) MaxMessagesToSummarize() int {
	if c == nil || c.Summarizer.MaxMessagesToSummarize == nil {
		return DefaultMaxMessagesToSummarize
	}
	return *c.Summarizer.MaxMessagesToSummarize
}

func (c *AppConfig) Temperature() float32 {
	if c == nil || c.Summarizer.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Summarizer.Temperature
}

func (c *AppConfig) Model() string {
	if c == nil || c.Summarizer.Model == nil {
		return ""
	}
	return *c.Summarizer.Model
}
