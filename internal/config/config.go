package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultProxyAddress is the standard Tor SOCKS5 proxy address.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and IPv6 surprises on some systems.
	DefaultProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout bounds one fetch, body included. Onion services are
	// slow, but a worker stuck for minutes on one page starves the crawl.
	DefaultTimeout = 20 * time.Second

	// DefaultWorkers is the number of concurrent fetch workers.
	DefaultWorkers = 20

	// DefaultBatchSize is the number of records written to the store at once.
	DefaultBatchSize = 10

	// DefaultMaxRedirects is the length of the longest redirect chain followed.
	DefaultMaxRedirects = 5

	// DefaultMaxBodySize limits the response body kept per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultIdleWait is how long an idle worker re-checks the frontier
	// before deciding the crawl is over.
	DefaultIdleWait = 2 * time.Second

	// DefaultRatioLimit is the internal/external link ratio at which a site
	// stops being expanded.
	DefaultRatioLimit = 200

	// DefaultResumeLimit is the number of pending URLs restored by --resume.
	DefaultResumeLimit = 1000

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "torspider"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StoreMongoDB  = "mongodb"
	StorePostgres = "postgres"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// DefaultProxySuffixes lists the domain suffixes fetched through the proxy.
var DefaultProxySuffixes = []string{".onion"}

// Config holds all options of a crawl.
// It is populated from defaults, the config file, the environment and CLI
// flags, then passed down explicitly; nothing reads it from global state.
//
// Design decision: We use a single flat struct even though the config file
// has sections. Every field ends up as an option of exactly one component,
// and nesting would add nothing at the call site.
type Config struct {
	// ProxyAddress is the Tor SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// EmbeddedTor starts a Tor daemon in-process instead of using ProxyAddress.
	EmbeddedTor bool

	// TorStartupTimeout bounds the embedded daemon's bootstrap.
	TorStartupTimeout time.Duration

	// ProxySuffixes are the domain suffixes routed through the proxy.
	ProxySuffixes []string

	// Timeout is the hard limit for one fetch.
	Timeout time.Duration

	// Workers is the number of concurrent fetch workers.
	Workers int

	// BatchSize is the number of records per store write.
	BatchSize int

	// MaxPages stops the crawl after this many fetches. 0 means no limit.
	MaxPages int

	// MaxDuration stops the crawl after this long. 0 means no limit.
	MaxDuration time.Duration

	// MaxRedirects is the length of the longest redirect chain followed.
	MaxRedirects int

	// MaxBodySize is the maximum body size kept per page, in bytes.
	MaxBodySize int64

	// IdleWait is how long an idle frontier is re-checked before the crawl ends.
	IdleWait time.Duration

	// RatioLimit stops expanding sites with this many internal links per
	// external link. 0 disables the check.
	RatioLimit float64

	// TorOnly drops every URL that is not routed through the proxy.
	TorOnly bool

	// ParentURLs also queues the ancestors of every fetched page.
	ParentURLs bool

	// UserAgent replaces the built-in browser User-Agent when set.
	UserAgent string

	// Seeds are the start URLs.
	Seeds []string

	// SeedsFile is a file of start URLs, one per line.
	SeedsFile string

	// Resume restores the pending URLs of an earlier crawl from the cache.
	Resume bool

	// ResumeLimit is the maximum number of pending URLs restored.
	ResumeLimit int

	// StoreDriver selects the document store: sqlite, mongodb or postgres.
	StoreDriver string

	// StoreURI is the connection string of a mongodb or postgres store.
	StoreURI string

	// StoreDatabase is the MongoDB database name.
	StoreDatabase string

	// StoreCollection is the MongoDB collection or PostgreSQL table.
	StoreCollection string

	// CacheDriver selects the dedup cache: memory, sqlite or redis.
	CacheDriver string

	// CacheURI is the connection string of a redis cache.
	CacheURI string

	// CacheNamespace prefixes the cache's keys.
	CacheNamespace string

	// DataDir holds the SQLite database. Defaults to the XDG data directory.
	DataDir string

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string

	// JSONReport writes the crawl report as JSON.
	JSONReport bool

	// MarkdownReport writes the crawl report as Markdown.
	MarkdownReport bool

	// ReportFile is the report destination. Empty means stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches logs to JSON lines.
	LogJSON bool

	// ConfigFilePath is the path of the config file given on the command line.
	ConfigFilePath string

	// SiteConfigs holds the per-site request overrides of the config file.
	SiteConfigs *File
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero.
func NewConfig() *Config {
	return &Config{
		ProxyAddress:      DefaultProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		ProxySuffixes:     slices.Clone(DefaultProxySuffixes),
		Timeout:           DefaultTimeout,
		Workers:           DefaultWorkers,
		BatchSize:         DefaultBatchSize,
		MaxRedirects:      DefaultMaxRedirects,
		MaxBodySize:       DefaultMaxBodySize,
		IdleWait:          DefaultIdleWait,
		RatioLimit:        DefaultRatioLimit,
		ResumeLimit:       DefaultResumeLimit,
		StoreDriver:       StoreSQLite,
		CacheDriver:       CacheMemory,
		CacheNamespace:    AppName,
		DataDir:           XDGDataDir(),
		SiteConfigs:       &File{Sites: make(map[string]SiteConfig)},
	}
}

// XDGDataDir returns the XDG data directory for torspider.
// On Linux: ~/.local/share/torspider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for torspider.
// On Linux: ~/.config/torspider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// NeedsProxy reports whether any crawled URL can go through the proxy.
func (c *Config) NeedsProxy() bool {
	return len(c.ProxySuffixes) > 0
}

// Validate checks the configuration and returns the first problem found.
//
// Design decision: We validate once after all sources are merged, before
// any connection is opened, so a bad value fails fast with a clear message.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 && c.SeedsFile == "" && !c.Resume {
		return ErrNoSeed
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxPages < 0 || c.MaxDuration < 0 || c.MaxRedirects < 0 ||
		c.MaxBodySize < 0 || c.RatioLimit < 0 || c.IdleWait < 0 || c.ResumeLimit < 0 {
		return ErrInvalidLimit
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	switch c.StoreDriver {
	case StoreSQLite:
	case StoreMongoDB, StorePostgres:
		if c.StoreURI == "" {
			return fmt.Errorf("%w for %s store", ErrMissingURI, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.StoreDriver)
	}

	switch c.CacheDriver {
	case CacheMemory, CacheSQLite:
	case CacheRedis:
		if c.CacheURI == "" {
			return fmt.Errorf("%w for %s cache", ErrMissingURI, c.CacheDriver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCache, c.CacheDriver)
	}
	return nil
}
