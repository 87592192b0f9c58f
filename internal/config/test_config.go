package config

import (
	"path/filepath"
	"time"
)

// TestConfig returns a config suitable for testing. Storage paths live under
// dir; the API points at baseURL and allows loopback hosts.
func TestConfig(dir, baseURL string) *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      DriverBolt,
			Path:        filepath.Join(dir, "test.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(dir, "index.bleve"),
		},
		API: APIConfig{
			Provider:       ProviderNewsAPI,
			BaseURL:        baseURL,
			Key:            "test-key",
			Country:        "us",
			HTTPTimeout:    5 * time.Second,
			UserAgent:      "fwrd-news-test/1.0",
			AllowLocalhost: true,
		},
		Paging: PagingConfig{
			PageSize:         20,
			MaxPageSize:      20,
			PrefetchDistance: 5,
			Debounce:         20 * time.Millisecond,
			ShareGrace:       50 * time.Millisecond,
		},
		Bookmarks: BookmarksConfig{
			ShareGrace: 50 * time.Millisecond,
		},
		Sync: SyncConfig{
			Schedule: "@every 1h",
			Timeout:  5 * time.Second,
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}
