package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/obiwankenobi699/HoneyPot/internal/extractor"
	"github.com/obiwankenobi699/HoneyPot/internal/tracker"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		APIKey          string        `yaml:"api_key"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Production bool `yaml:"production"`
	} `yaml:"log"`

	Database struct {
		Type string `yaml:"type"` // "sqlite", "postgres" or "memory"
		Path string `yaml:"path"` // SQLite file
		URL  string `yaml:"url"`  // PostgreSQL URL
	} `yaml:"database"`

	Extractor extractor.Config `yaml:"extractor"`

	Tracker struct {
		ConfirmThreshold float64         `yaml:"confirm_threshold"`
		Weights          tracker.Weights `yaml:"weights"`
	} `yaml:"tracker"`

	Callback struct {
		Enabled    bool          `yaml:"enabled"`
		URL        string        `yaml:"url"`
		APIKey     string        `yaml:"api_key"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		QueueSize  int           `yaml:"queue_size"`
		Workers    int           `yaml:"workers"`
	} `yaml:"callback"`

	Classifier struct {
		Enabled bool          `yaml:"enabled"`
		MLURL   string        `yaml:"ml_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"classifier"`

	Notes struct {
		Enabled           bool          `yaml:"enabled"`
		APIKey            string        `yaml:"api_key"`
		ModelName         string        `yaml:"model_name"`
		MaxRetries        int           `yaml:"max_retries"`
		RetryDelay        time.Duration `yaml:"retry_delay"`
		RequestsPerMinute int           `yaml:"requests_per_minute"`
	} `yaml:"notes"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Admin struct {
		Username     string        `yaml:"username"`
		PasswordHash string        `yaml:"password_hash"`
		JWTSecret    string        `yaml:"jwt_secret"`
		TokenTTL     time.Duration `yaml:"token_ttl"`
	} `yaml:"admin"`

	Personas []string `yaml:"personas"`
}

// LoadConfig loads configuration from YAML file. Variables from a .env file
// next to the working directory are loaded first so ${VAR} references resolve.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	// Omitted weights keep their stock values.
	config.Tracker.Weights = tracker.DefaultWeights()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	config.expandEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "./data/honeypot.db"
	}

	if c.Tracker.ConfirmThreshold == 0 {
		c.Tracker.ConfirmThreshold = tracker.DefaultConfirmThreshold
	}

	if c.Callback.Timeout == 0 {
		c.Callback.Timeout = 10 * time.Second
	}
	if c.Callback.MaxRetries == 0 {
		c.Callback.MaxRetries = 3
	}
	if c.Callback.RetryDelay == 0 {
		c.Callback.RetryDelay = 2 * time.Second
	}
	if c.Callback.QueueSize == 0 {
		c.Callback.QueueSize = 64
	}
	if c.Callback.Workers == 0 {
		c.Callback.Workers = 2
	}

	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = 5 * time.Second
	}

	if c.Notes.ModelName == "" {
		c.Notes.ModelName = "gemini-2.0-flash"
	}
	if c.Notes.MaxRetries == 0 {
		c.Notes.MaxRetries = 3
	}
	if c.Notes.RequestsPerMinute == 0 {
		c.Notes.RequestsPerMinute = 8
	}

	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
}

// expandEnv resolves ${VAR} references in secrets and endpoints.
func (c *Config) expandEnv() {
	for _, s := range []*string{
		&c.Server.APIKey,
		&c.Database.Path,
		&c.Database.URL,
		&c.Callback.URL,
		&c.Callback.APIKey,
		&c.Classifier.MLURL,
		&c.Notes.APIKey,
		&c.Telegram.BotToken,
		&c.Admin.PasswordHash,
		&c.Admin.JWTSecret,
	} {
		*s = os.ExpandEnv(*s)
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}
	if c.Tracker.ConfirmThreshold < 0 || c.Tracker.ConfirmThreshold > 1 {
		return fmt.Errorf("tracker.confirm_threshold must be within [0, 1], got %v", c.Tracker.ConfirmThreshold)
	}
	if c.Callback.Enabled && c.Callback.URL == "" {
		return fmt.Errorf("callback.url is required when callback.enabled is true")
	}
	if c.Classifier.Enabled && c.Classifier.MLURL == "" {
		return fmt.Errorf("classifier.ml_url is required when classifier.enabled is true")
	}
	return nil
}
