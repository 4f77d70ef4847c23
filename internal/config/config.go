package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/ReviewGuide/internal/poller"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Backend Backend `yaml:"backend"`
	Polling Polling `yaml:"polling"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Backend struct {
	BaseURL           string        `yaml:"base_url"`
	BaseURLEnv        string        `yaml:"base_url_env"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

type Polling struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	Interval     time.Duration `yaml:"interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConfigDir returns the XDG config directory for reviewguide.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "reviewguide")
}

// DataDir returns the XDG data directory for reviewguide.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "reviewguide")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/reviewguide/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'reviewguide init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	pollDefaults := poller.DefaultConfig()
	cfg := &Config{
		Backend: Backend{
			BaseURL:        "http://127.0.0.1:5000",
			BaseURLEnv:     "REVIEWGUIDE_API_URL",
			RequestTimeout: 180 * time.Second,
		},
		Polling: Polling{
			InitialDelay: pollDefaults.InitialDelay,
			Interval:     pollDefaults.Interval,
			MaxAttempts:  pollDefaults.MaxAttempts,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Polling.MaxAttempts <= 0 {
		return nil, fmt.Errorf("polling.max_attempts must be positive, got %d", cfg.Polling.MaxAttempts)
	}
	if cfg.Polling.InitialDelay < 0 || cfg.Polling.Interval < 0 {
		return nil, fmt.Errorf("polling delays must not be negative")
	}

	return cfg, nil
}

// GetBaseURL returns the backend URL, preferring the override environment variable.
func (c *Config) GetBaseURL() string {
	if c.Backend.BaseURLEnv != "" {
		if v := os.Getenv(c.Backend.BaseURLEnv); v != "" {
			return v
		}
	}
	return c.Backend.BaseURL
}

// PollerConfig converts the polling section for the poller.
func (c *Config) PollerConfig() poller.Config {
	return poller.Config{
		InitialDelay: c.Polling.InitialDelay,
		Interval:     c.Polling.Interval,
		MaxAttempts:  c.Polling.MaxAttempts,
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
