package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"

	ProviderNewsAPI = "newsapi"
	ProviderRSS     = "rss"
)

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	API       APIConfig       `mapstructure:"api"`
	RSS       RSSConfig       `mapstructure:"rss"`
	Paging    PagingConfig    `mapstructure:"paging"`
	Bookmarks BookmarksConfig `mapstructure:"bookmarks"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Log       LogConfig       `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver      string        `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type APIConfig struct {
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	Key            string        `mapstructure:"key"`
	Country        string        `mapstructure:"country"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	AllowLocalhost bool          `mapstructure:"allow_localhost"`
}

type RSSConfig struct {
	URL string `mapstructure:"url"`
}

type PagingConfig struct {
	PageSize         int           `mapstructure:"page_size"`
	MaxPageSize      int           `mapstructure:"max_page_size"`
	PrefetchDistance int           `mapstructure:"prefetch_distance"`
	Debounce         time.Duration `mapstructure:"debounce"`
	ShareGrace       time.Duration `mapstructure:"share_grace"`
}

type BookmarksConfig struct {
	ShareGrace time.Duration `mapstructure:"share_grace"`
}

type SyncConfig struct {
	Schedule string        `mapstructure:"schedule"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BrowserConfig names the program used to open article links. Empty means
// the platform default.
type BrowserConfig struct {
	Command string `mapstructure:"command"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Database: DatabaseConfig{
			Driver:      DriverBolt,
			Path:        filepath.Join(homeDir, ".fwrd-news", "bookmarks.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(homeDir, ".fwrd-news", "bookmarks.bleve"),
		},
		API: APIConfig{
			Provider:    ProviderNewsAPI,
			BaseURL:     "https://newsapi.org/v2",
			Country:     "us",
			HTTPTimeout: 30 * time.Second,
			UserAgent:   "fwrd-news/1.0 (https://github.com/pders01/fwrd-news)",
		},
		Paging: PagingConfig{
			PageSize:         20,
			MaxPageSize:      20,
			PrefetchDistance: 20,
			Debounce:         400 * time.Millisecond,
			ShareGrace:       5 * time.Second,
		},
		Bookmarks: BookmarksConfig{
			ShareGrace: 5 * time.Second,
		},
		Sync: SyncConfig{
			Schedule: "@every 6h",
			Timeout:  2 * time.Minute,
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}

// setDefaults registers every leaf key so env overrides such as
// FWRD_NEWS_API_KEY resolve against nested sections.
func setDefaults(v *viper.Viper, cfg *Config) {
	defaults := map[string]any{
		"database.driver":           cfg.Database.Driver,
		"database.path":             cfg.Database.Path,
		"database.timeout":          cfg.Database.Timeout,
		"database.search_index":     cfg.Database.SearchIndex,
		"api.provider":              cfg.API.Provider,
		"api.base_url":              cfg.API.BaseURL,
		"api.key":                   cfg.API.Key,
		"api.country":               cfg.API.Country,
		"api.http_timeout":          cfg.API.HTTPTimeout,
		"api.user_agent":            cfg.API.UserAgent,
		"api.allow_localhost":       cfg.API.AllowLocalhost,
		"rss.url":                   cfg.RSS.URL,
		"paging.page_size":          cfg.Paging.PageSize,
		"paging.max_page_size":      cfg.Paging.MaxPageSize,
		"paging.prefetch_distance":  cfg.Paging.PrefetchDistance,
		"paging.debounce":           cfg.Paging.Debounce,
		"paging.share_grace":        cfg.Paging.ShareGrace,
		"bookmarks.share_grace":     cfg.Bookmarks.ShareGrace,
		"sync.schedule":             cfg.Sync.Schedule,
		"sync.timeout":              cfg.Sync.Timeout,
		"browser.command":           cfg.Browser.Command,
		"log.level":                 cfg.Log.Level,
		"log.file":                  cfg.Log.File,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(homeDir, ".config", "fwrd-news"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FWRD_NEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverBolt, DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.API.Provider {
	case ProviderNewsAPI:
	case ProviderRSS:
		if c.RSS.URL == "" {
			return fmt.Errorf("rss provider requires rss.url")
		}
	default:
		return fmt.Errorf("unknown api provider %q", c.API.Provider)
	}
	if c.Paging.PageSize <= 0 {
		return fmt.Errorf("paging.page_size must be positive, got %d", c.Paging.PageSize)
	}
	if c.Paging.MaxPageSize <= 0 {
		return fmt.Errorf("paging.max_page_size must be positive, got %d", c.Paging.MaxPageSize)
	}
	if c.Paging.Debounce < 0 {
		return fmt.Errorf("paging.debounce must not be negative")
	}
	if c.Paging.ShareGrace < 0 {
		return fmt.Errorf("paging.share_grace must not be negative")
	}
	return nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations are written as strings for TOML readability
	v.Set("database", map[string]any{
		"driver":       config.Database.Driver,
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	})
	v.Set("api", map[string]any{
		"provider":        config.API.Provider,
		"base_url":        config.API.BaseURL,
		"key":             config.API.Key,
		"country":         config.API.Country,
		"http_timeout":    config.API.HTTPTimeout.String(),
		"user_agent":      config.API.UserAgent,
		"allow_localhost": config.API.AllowLocalhost,
	})
	v.Set("rss", map[string]any{
		"url": config.RSS.URL,
	})
	v.Set("paging", map[string]any{
		"page_size":         config.Paging.PageSize,
		"max_page_size":     config.Paging.MaxPageSize,
		"prefetch_distance": config.Paging.PrefetchDistance,
		"debounce":          config.Paging.Debounce.String(),
		"share_grace":       config.Paging.ShareGrace.String(),
	})
	v.Set("bookmarks", map[string]any{
		"share_grace": config.Bookmarks.ShareGrace.String(),
	})
	v.Set("sync", map[string]any{
		"schedule": config.Sync.Schedule,
		"timeout":  config.Sync.Timeout.String(),
	})
	v.Set("browser", map[string]any{
		"command": config.Browser.Command,
	})
	v.Set("log", map[string]any{
		"level": config.Log.Level,
		"file":  config.Log.File,
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}

// DefaultPath is where Load looks first when no path is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fwrd-news", "config.toml")
}
