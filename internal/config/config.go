// Load envs from .env
// Load YAML config
// Override from environment
// Provide default values
// Validate config

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	RedisURL     string `yaml:"redis_url" env:"REDIS_URL"`
	RedisChannel string `yaml:"redis_channel" env:"REDIS_CHANNEL"`

	TelegramToken  string `yaml:"telegram_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `yaml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`
	// ListingsURL is opened when a new-jobs notification is clicked.
	ListingsURL string `yaml:"listings_url" env:"LISTINGS_URL"`

	ParserURL   string `yaml:"parser_url" env:"PARSER_URL"`
	ParserToken string `yaml:"parser_token" env:"PARSER_TOKEN"`

	//Paths
	SettingsPath   string `yaml:"settings_path" env:"SETTINGS_PATH"`
	ProfilesPath   string `yaml:"profiles_path" env:"PROFILES_PATH"`
	CookiesPath    string `yaml:"cookies_path" env:"COOKIES_PATH"`
	ScreenshotsDir string `yaml:"screenshots_dir" env:"SCREENSHOTS_DIR"`

	//Browser
	Headless         *bool `yaml:"headless" env:"HEADLESS"`
	NormalPoolSize   int   `yaml:"normal_pool_size" env:"NORMAL_POOL_SIZE"`
	IsolatedPoolSize int   `yaml:"isolated_pool_size" env:"ISOLATED_POOL_SIZE"`

	//Scanning
	BatchSize       int  `yaml:"batch_size" env:"BATCH_SIZE"`
	ProcessingLimit int  `yaml:"processing_limit" env:"PROCESSING_LIMIT"`
	ScanOnStart     bool `yaml:"scan_on_start" env:"SCAN_ON_START"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogPretty bool   `yaml:"log_pretty" env:"LOG_PRETTY"`
}

// Load reads the configuration and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads .env, then the YAML file at path, then environment overrides,
// and fills defaults without validating. A missing YAML file is not an
// error; the environment alone may configure the scanner.
func Read(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SettingsPath == "" {
		c.SettingsPath = ".cache"
	}
	if c.ProfilesPath == "" {
		c.ProfilesPath = ".profiles"
	}
	if c.CookiesPath == "" {
		c.CookiesPath = ".cookies"
	}
	if c.Headless == nil {
		headless := true
		c.Headless = &headless
	}
	if c.NormalPoolSize == 0 {
		c.NormalPoolSize = 3
	}
	if c.IsolatedPoolSize == 0 {
		c.IsolatedPoolSize = 1
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	if c.ProcessingLimit == 0 {
		c.ProcessingLimit = 300
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks required fields. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if strings.TrimSpace(c.ParserURL) == "" {
		errs = append(errs, errors.New("PARSER_URL is required"))
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set"))
	}
	if c.NormalPoolSize < 1 {
		errs = append(errs, fmt.Errorf("normal_pool_size must be at least 1, got %d", c.NormalPoolSize))
	}
	if c.IsolatedPoolSize < 1 {
		errs = append(errs, fmt.Errorf("isolated_pool_size must be at least 1, got %d", c.IsolatedPoolSize))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize))
	}
	return errors.Join(errs...)
}

func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}
