package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".torspider"

// Environment variables read by ApplyEnv.
const (
	EnvProxy    = "TORSPIDER_PROXY"
	EnvMongoURI = "MONGODB_URI"
	EnvPostgres = "DATABASE_URL"
	EnvRedisURL = "REDIS_URL"
)

// CrawlSection is the "crawl" section of the config file.
// Zero values leave the current setting unchanged.
type CrawlSection struct {
	Proxy         string        `yaml:"proxy,omitempty"`
	ProxySuffixes []string      `yaml:"proxy_suffixes,omitempty"`
	Workers       int           `yaml:"workers,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	BatchSize     int           `yaml:"batch_size,omitempty"`
	MaxPages      int           `yaml:"max_pages,omitempty"`
	MaxDuration   time.Duration `yaml:"max_duration,omitempty"`
	MaxRedirects  *int          `yaml:"max_redirects,omitempty"`
	MaxBodySize   int64         `yaml:"max_body_size,omitempty"`
	IdleWait      time.Duration `yaml:"idle_wait,omitempty"`
	RatioLimit    *float64      `yaml:"ratio_limit,omitempty"`
	TorOnly       *bool         `yaml:"tor_only,omitempty"`
	ParentURLs    *bool         `yaml:"parent_urls,omitempty"`
	UserAgent     string        `yaml:"user_agent,omitempty"`
}

// StoreSection is the "store" section of the config file.
type StoreSection struct {
	Driver     string `yaml:"driver,omitempty"`
	URI        string `yaml:"uri,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	DataDir    string `yaml:"data_dir,omitempty"`
}

// CacheSection is the "cache" section of the config file.
type CacheSection struct {
	Driver    string `yaml:"driver,omitempty"`
	URI       string `yaml:"uri,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// File represents the structure of the .torspider configuration file.
type File struct {
	Crawl CrawlSection `yaml:"crawl,omitempty"`
	Store StoreSection `yaml:"store,omitempty"`
	Cache CacheSection `yaml:"cache,omitempty"`

	// Sites maps hosts to their request overrides.
	// Keys are hosts without scheme (e.g., "example.onion").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, if specified
//  2. .torspider in the current directory
//  3. .torspider in the user's home directory
//  4. config.yaml in the XDG config directory
//
// It returns an empty string when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ApplyFile copies the non-zero settings of cf into c and keeps cf for
// per-site lookups.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	c.SiteConfigs = cf

	cr := cf.Crawl
	setString(&c.ProxyAddress, cr.Proxy)
	if len(cr.ProxySuffixes) > 0 {
		c.ProxySuffixes = cr.ProxySuffixes
	}
	setPositive(&c.Workers, cr.Workers)
	setPositive(&c.Timeout, cr.Timeout)
	setPositive(&c.BatchSize, cr.BatchSize)
	setPositive(&c.MaxPages, cr.MaxPages)
	setPositive(&c.MaxDuration, cr.MaxDuration)
	setPositive(&c.MaxBodySize, cr.MaxBodySize)
	setPositive(&c.IdleWait, cr.IdleWait)
	setString(&c.UserAgent, cr.UserAgent)
	if cr.MaxRedirects != nil {
		c.MaxRedirects = *cr.MaxRedirects
	}
	if cr.RatioLimit != nil {
		c.RatioLimit = *cr.RatioLimit
	}
	if cr.TorOnly != nil {
		c.TorOnly = *cr.TorOnly
	}
	if cr.ParentURLs != nil {
		c.ParentURLs = *cr.ParentURLs
	}

	setString(&c.StoreDriver, cf.Store.Driver)
	setString(&c.StoreURI, cf.Store.URI)
	setString(&c.StoreDatabase, cf.Store.Database)
	setString(&c.StoreCollection, cf.Store.Collection)
	setString(&c.DataDir, cf.Store.DataDir)

	setString(&c.CacheDriver, cf.Cache.Driver)
	setString(&c.CacheURI, cf.Cache.URI)
	setString(&c.CacheNamespace, cf.Cache.Namespace)
}

// LoadEnvFile reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies connection settings from the environment. Connection
// URIs only apply to the driver they belong to.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvProxy); ok && v != "" {
		c.ProxyAddress = v
	}
	if v, ok := lookup(EnvMongoURI); ok && v != "" && c.StoreDriver == StoreMongoDB {
		c.StoreURI = v
	}
	if v, ok := lookup(EnvPostgres); ok && v != "" && c.StoreDriver == StorePostgres {
		c.StoreURI = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" && c.CacheDriver == CacheRedis {
		c.CacheURI = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPositive[T int | int64 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
