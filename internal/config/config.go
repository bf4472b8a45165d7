package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PreviewConfig controls the source feed preview.
type PreviewConfig struct {
	// CacheDir stores fetched feeds keyed by URL hash.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Timezone is the IANA zone used to bucket occurrences by weekday.
	Timezone string `yaml:"timezone" json:"timezone"`

	// HorizonDays is how far ahead recurrences are expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// RequestsPerSecond and Burst limit outbound feed fetches.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`

	// CacheMaxAgeHours is the age after which cached feeds are pruned.
	CacheMaxAgeHours int `yaml:"cache_max_age_hours" json:"cache_max_age_hours"`

	// AllowPrivateNetworks lets previews fetch feeds on loopback, private
	// and link-local addresses. Leave off on a public deployment.
	AllowPrivateNetworks bool `yaml:"allow_private_networks" json:"allow_private_networks"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Host is written into the page's data-host attribute and prefixes every
	// built URL (e.g. "https://ical.example.com"). If empty, it is derived
	// from each request's Host and X-Forwarded-Proto headers, which clients
	// control; set it in production.
	Host string `yaml:"host" json:"host"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CachePruneCron is a cron-style schedule for pruning the preview cache.
	CachePruneCron string `yaml:"cache_prune" json:"cache_prune"`

	Preview PreviewConfig `yaml:"preview" json:"preview"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen           = "127.0.0.1:8080"
	defaultLogLevel         = "info"
	defaultCachePruneCron   = "0 * * * *"
	defaultCacheDir         = "./var/ics-cache"
	defaultTimezone         = "UTC"
	defaultHorizonDays      = 28
	defaultFetchTimeoutSec  = 15
	defaultRequestsPerSec   = 2.0
	defaultBurst            = 4
	defaultCacheMaxAgeHours = 24
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CachePruneCron == "" {
		c.CachePruneCron = defaultCachePruneCron
	}

	p := &c.Preview
	if p.CacheDir == "" {
		p.CacheDir = defaultCacheDir
	}
	if p.Timezone == "" {
		p.Timezone = defaultTimezone
	}
	if p.HorizonDays <= 0 {
		p.HorizonDays = defaultHorizonDays
	}
	if p.FetchTimeoutSeconds <= 0 {
		p.FetchTimeoutSeconds = defaultFetchTimeoutSec
	}
	if p.RequestsPerSecond <= 0 {
		p.RequestsPerSecond = defaultRequestsPerSec
	}
	if p.Burst <= 0 {
		p.Burst = defaultBurst
	}
	if p.CacheMaxAgeHours <= 0 {
		p.CacheMaxAgeHours = defaultCacheMaxAgeHours
	}
}

// BasicAuthEnabled reports whether both credentials are set.
func (c *Config) BasicAuthEnabled() bool {
	return c.BasicAuth != nil && c.BasicAuth.Username != "" && c.BasicAuth.Password != ""
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".icalfilter-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
