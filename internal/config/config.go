// Package config loads the service configuration from defaults, an optional
// YAML file, a .env file and PROMPTLIB_* environment variables.
//
// Nested keys map to environment variables by upper-casing and replacing
// dots with underscores: auth.jwt_secret is PROMPTLIB_AUTH_JWT_SECRET.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sakif/prompt-library/internal/category"
	"github.com/sakif/prompt-library/internal/optimizer"
)

const envPrefix = "PROMPTLIB"

type Config struct {
	Server     ServerConfig        `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Search     SearchConfig        `mapstructure:"search" yaml:"search"`
	Auth       AuthConfig          `mapstructure:"auth" yaml:"auth"`
	Optimizer  OptimizerConfig     `mapstructure:"optimizer" yaml:"optimizer"`
	Versioning VersioningConfig    `mapstructure:"versioning" yaml:"versioning"`
	Log        LogConfig           `mapstructure:"log" yaml:"log"`
	Categories []category.Category `mapstructure:"categories" yaml:"categories"`
}

type ServerConfig struct {
	Port    int    `mapstructure:"port" yaml:"port"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SearchConfig.IndexPath "" keeps the index in memory.
type SearchConfig struct {
	IndexPath string `mapstructure:"index_path" yaml:"index_path"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	GitHub    GitHubConfig  `mapstructure:"github" yaml:"github"`
}

type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url" yaml:"callback_url"`
}

// Enabled reports whether GitHub sign-in has credentials.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type OptimizerConfig struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	Attempts    uint    `mapstructure:"attempts" yaml:"attempts"`
}

type VersioningConfig struct {
	StrictPointerUpdates bool `mapstructure:"strict_pointer_updates" yaml:"strict_pointer_updates"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, BaseURL: "http://localhost:8080"},
		Database: DatabaseConfig{Path: "data/prompts.db"},
		Search:   SearchConfig{IndexPath: ""},
		Auth:     AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		Optimizer: OptimizerConfig{
			BaseURL:     optimizer.DefaultBaseURL,
			Model:       optimizer.DefaultModel,
			Temperature: optimizer.DefaultTemperature,
			Attempts:    optimizer.DefaultAttempts,
		},
		Log:        LogConfig{Level: "info", Format: "text"},
		Categories: category.DefaultTable(),
	}
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager loads .env (if present), then cfgFile or ./config.yaml, then
// the environment. A missing config file is not an error.
func NewManager(cfgFile string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    logger,
	}
	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	d := DefaultConfig()

	// Every key gets a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("search.index_path", d.Search.IndexPath)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.github.client_id", "")
	v.SetDefault("auth.github.client_secret", "")
	v.SetDefault("auth.github.callback_url", "")
	v.SetDefault("optimizer.api_key", "")
	v.SetDefault("optimizer.base_url", d.Optimizer.BaseURL)
	v.SetDefault("optimizer.model", d.Optimizer.Model)
	v.SetDefault("optimizer.temperature", d.Optimizer.Temperature)
	v.SetDefault("optimizer.attempts", d.Optimizer.Attempts)
	v.SetDefault("versioning.strict_pointer_updates", d.Versioning.StrictPointerUpdates)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("categories", d.Categories)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.promptlib")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = DefaultConfig().Auth.TokenTTL
	}
	if cfg.Auth.GitHub.CallbackURL == "" {
		cfg.Auth.GitHub.CallbackURL = strings.TrimSuffix(cfg.Server.BaseURL, "/") + "/auth/github/callback"
	}
	return &cfg, nil
}

// ConfigFile is the file that was read, or "" if none was found.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig reloads the file when it changes on disk. A reload that
// fails to parse keeps the previous configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cm.reload(e.Name)
	})
	cm.v.WatchConfig()
}

func (cm *Manager) reload(name string) {
	cfg, err := cm.load()
	if err != nil {
		cm.logger.Warn("config reload failed",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		return
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	cm.logger.Info("config reloaded", slog.String("file", name))
	for _, fn := range callbacks {
		fn(cfg)
	}
}

// SlogLevel maps log.level to a slog.Level. Unknown values are Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger from log.format and log.level.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// WriteDefault writes the default configuration to path as YAML.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	header := []byte(`# Prompt library configuration
# Every key can be overridden by a PROMPTLIB_* environment variable,
# e.g. PROMPTLIB_AUTH_JWT_SECRET or PROMPTLIB_OPTIMIZER_API_KEY.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
