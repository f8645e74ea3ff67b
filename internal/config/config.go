// Package config loads and validates the NAS browser YAML configuration.
// It applies defaults so the server can rely on fully populated values.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Bind         string `yaml:"bind"`
	Port         int    `yaml:"port"`
	Debug        bool   `yaml:"debug"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	CookieSecure bool   `yaml:"cookie_secure"`

	// LoginRatePerMinute caps login attempts per client IP.
	LoginRatePerMinute int `yaml:"login_rate_per_minute"`
}

// AuthConfig holds session signing settings.
type AuthConfig struct {
	SessionSecret string `yaml:"session_secret"`
}

// StoreConfig holds the sqlite store path.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BrowseConfig bounds listing, preview, and search work.
type BrowseConfig struct {
	AllowedRoots        []string `yaml:"allowed_roots"`
	MaxPreviewBytes     int      `yaml:"max_preview_bytes"`
	MaxSearchResults    int      `yaml:"max_search_results"`
	SearchDefaultDepth  int      `yaml:"search_default_depth"`
	SearchBudgetSeconds int      `yaml:"search_budget_seconds"`
}

// ThumbConfig holds thumbnail cache settings.
type ThumbConfig struct {
	CacheDir   string `yaml:"cache_dir"`
	MaxDim     int    `yaml:"max_dim"`
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// StatsConfig bounds the admin stats scans.
type StatsConfig struct {
	TimeBudgetSeconds  int `yaml:"time_budget_seconds"`
	MaxEntriesPerRoot  int `yaml:"max_entries_per_root"`
	RootCheckTimeoutMS int `yaml:"root_check_timeout_ms"`
	ThumbBudgetSeconds int `yaml:"thumb_budget_seconds"`
}

// WebDAVConfig holds WebDAV settings.
type WebDAVConfig struct {
	Enable bool   `yaml:"enable"`
	Prefix string `yaml:"prefix"`
}

// Config mirrors the nas.yaml schema.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	HTTP   HTTPConfig   `yaml:"http"`
	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Browse BrowseConfig `yaml:"browse"`
	Thumbs ThumbConfig  `yaml:"thumbs"`
	Stats  StatsConfig  `yaml:"stats"`
	WebDAV WebDAVConfig `yaml:"webdav"`
}

// Load reads a YAML config file, applies defaults, and validates it.
// It returns a fully populated Config or a descriptive error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	ApplyDefaults(&c)
	if err := Validate(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyDefaults populates zero-values with sane defaults.
func ApplyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.MaxUploadMB == 0 {
		c.HTTP.MaxUploadMB = 512
	}
	if c.HTTP.LoginRatePerMinute == 0 {
		c.HTTP.LoginRatePerMinute = 10
	}
	if c.Store.Path == "" {
		c.Store.Path = "./data/nas.db"
	}
	if c.Browse.MaxPreviewBytes == 0 {
		c.Browse.MaxPreviewBytes = 1_000_000
	}
	if c.Browse.MaxSearchResults == 0 {
		c.Browse.MaxSearchResults = 500
	}
	if c.Browse.SearchDefaultDepth == 0 {
		c.Browse.SearchDefaultDepth = 6
	}
	if c.Browse.SearchBudgetSeconds == 0 {
		c.Browse.SearchBudgetSeconds = 10
	}
	if c.Thumbs.CacheDir == "" {
		c.Thumbs.CacheDir = ".thumb_cache"
	}
	if c.Thumbs.MaxDim == 0 {
		c.Thumbs.MaxDim = 256
	}
	if c.Stats.TimeBudgetSeconds == 0 {
		c.Stats.TimeBudgetSeconds = 3
	}
	if c.Stats.MaxEntriesPerRoot == 0 {
		c.Stats.MaxEntriesPerRoot = 50000
	}
	if c.Stats.RootCheckTimeoutMS == 0 {
		c.Stats.RootCheckTimeoutMS = 500
	}
	if c.Stats.ThumbBudgetSeconds == 0 {
		c.Stats.ThumbBudgetSeconds = 2
	}
	if c.WebDAV.Prefix == "" {
		c.WebDAV.Prefix = "/dav"
	}
}

// Validate performs basic sanity checks for required fields and ranges.
// Allowed roots that do not exist are rejected here rather than at
// request time so a typo fails loudly at startup.
func Validate(c *Config) error {
	if strings.TrimSpace(c.Log.Level) == "" {
		return errors.New("log.level is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port is invalid")
	}
	if c.HTTP.MaxUploadMB < 1 || c.HTTP.MaxUploadMB > 102400 {
		return errors.New("http.max_upload_mb is invalid")
	}
	if c.HTTP.LoginRatePerMinute < 1 {
		return errors.New("http.login_rate_per_minute is invalid")
	}
	if len(c.Auth.SessionSecret) < 16 {
		return errors.New("auth.session_secret must be at least 16 characters")
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	for i, r := range c.Browse.AllowedRoots {
		clean := filepath.Clean(strings.TrimSpace(r))
		if !filepath.IsAbs(clean) {
			return errors.New("browse.allowed_roots entries must be absolute paths")
		}
		st, err := os.Stat(clean)
		if err != nil || !st.IsDir() {
			return errors.New("browse.allowed_roots entry is not an existing directory: " + clean)
		}
		if clean != string(filepath.Separator) {
			clean = strings.TrimRight(clean, string(filepath.Separator))
		}
		c.Browse.AllowedRoots[i] = clean
	}
	if c.Thumbs.MaxDim < 16 || c.Thumbs.MaxDim > 2048 {
		return errors.New("thumbs.max_dim must be between 16 and 2048")
	}
	return nil
}
