package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/nao1215/torspider/internal/archive"
	"github.com/nao1215/torspider/internal/config"
	"github.com/nao1215/torspider/internal/crawler"
	"github.com/nao1215/torspider/internal/dedup"
	"github.com/nao1215/torspider/internal/fetcher"
	"github.com/nao1215/torspider/internal/frontier"
	"github.com/nao1215/torspider/internal/log"
	"github.com/nao1215/torspider/internal/metrics"
	"github.com/nao1215/torspider/internal/report"
	"github.com/nao1215/torspider/internal/tor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envFile is read into the environment before the environment is applied.
const envFile = ".env"

// flushTimeout bounds the final flush of the archive after the crawl stopped.
const flushTimeout = 30 * time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl outward from seed URLs",
		Long: `Crawl fetches the seed URLs and every page reachable from them.

Each URL is fetched at most once per crawl. Pages are archived to the
configured store in batches, and a summary of the crawled sites is printed
when the crawl ends. Press Ctrl+C to stop: pages already being fetched are
archived before exiting.

Examples:
  # Crawl from one onion service through the local Tor proxy
  torspider crawl http://exampleonion.onion

  # Crawl from a list of seeds with 50 workers, stopping after 1000 pages
  torspider crawl -s seeds.txt -w 50 -p 1000

  # Only follow onion services, using an embedded Tor daemon
  torspider crawl --embedded-tor --tor-only http://exampleonion.onion

  # Archive to MongoDB and share the crawl state through Redis
  torspider crawl --store mongodb --store-uri mongodb://localhost:27017 \
    --cache redis --cache-uri redis://localhost:6379/0 -s seeds.txt

  # Continue an interrupted crawl from its persisted pending URLs
  torspider crawl --cache sqlite --resume

  # Write a Markdown report and expose Prometheus metrics
  torspider crawl -m -o report.md --metrics-addr :9090 http://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()

	// Tor
	f.StringP("proxy", "e", config.DefaultProxyAddress, "Tor SOCKS5 proxy address")
	f.Bool("embedded-tor", false, "Start an embedded Tor daemon instead of using --proxy")
	f.DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")
	f.StringSlice("proxy-suffix", config.DefaultProxySuffixes, "Domain suffixes fetched through the proxy")
	f.Bool("tor-only", false, "Drop every URL that is not fetched through the proxy")

	// Crawl behavior
	f.IntP("workers", "w", config.DefaultWorkers, "Number of concurrent fetch workers")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Hard limit for one fetch")
	f.IntP("max-pages", "p", 0, "Stop after this many fetches (0 = no limit)")
	f.Duration("max-duration", 0, "Stop after this long (0 = no limit)")
	f.Int("max-redirects", config.DefaultMaxRedirects, "Longest redirect chain followed")
	f.Int64("max-body-size", config.DefaultMaxBodySize, "Largest response body kept, in bytes")
	f.Duration("idle-wait", config.DefaultIdleWait, "How long an empty frontier is re-checked before the crawl ends")
	f.Float64("ratio-limit", config.DefaultRatioLimit, "Internal/external link ratio at which a site stops being expanded (0 = off)")
	f.Bool("parent-urls", false, "Also crawl the parent paths of every fetched page")
	f.String("user-agent", "", "Replace the built-in User-Agent")

	// Seeds
	f.StringP("seeds-file", "s", "", "File of seed URLs, one per line")
	f.Bool("resume", false, "Restore pending URLs of an earlier crawl from the cache")
	f.Int("resume-limit", config.DefaultResumeLimit, "Maximum number of pending URLs restored")

	// Storage
	f.IntP("batch", "b", config.DefaultBatchSize, "Records written to the store per batch")
	f.String("store", config.StoreSQLite, "Document store: sqlite, mongodb or postgres")
	f.String("store-uri", "", "Connection string of the mongodb or postgres store")
	f.String("store-database", "", "MongoDB database name")
	f.String("store-collection", "", "MongoDB collection or PostgreSQL table")
	f.String("data-dir", "", "Directory of the SQLite database (default: XDG data directory)")
	f.String("cache", config.CacheMemory, "Dedup cache: memory, sqlite or redis")
	f.String("cache-uri", "", "Connection string of the redis cache")
	f.String("cache-namespace", config.AppName, "Key prefix in the redis cache")

	// Configuration file
	f.StringP("config", "c", "", "Configuration file path (default: .torspider in current or home directory)")

	// Output
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	f.BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	f.StringP("report", "o", "", "Write the report to this file instead of stdout")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, os.LookupEnv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger)
}

// buildConfig merges defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func buildConfig(cmd *cobra.Command, args []string, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path that does not exist is an error; a missing default
	// file is not.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(cf)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	// Flags go first as well so --store and --cache decide which URI
	// variable of the environment applies.
	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(lookup)
	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}

	cfg.Seeds = args
	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.LogJSON = boolFlag(cmd, "log-json")
	return cfg, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) error {
	return errors.Join(
		override(f, "proxy", &cfg.ProxyAddress, f.GetString),
		override(f, "embedded-tor", &cfg.EmbeddedTor, f.GetBool),
		override(f, "tor-timeout", &cfg.TorStartupTimeout, f.GetDuration),
		override(f, "proxy-suffix", &cfg.ProxySuffixes, f.GetStringSlice),
		override(f, "tor-only", &cfg.TorOnly, f.GetBool),
		override(f, "workers", &cfg.Workers, f.GetInt),
		override(f, "timeout", &cfg.Timeout, f.GetDuration),
		override(f, "max-pages", &cfg.MaxPages, f.GetInt),
		override(f, "max-duration", &cfg.MaxDuration, f.GetDuration),
		override(f, "max-redirects", &cfg.MaxRedirects, f.GetInt),
		override(f, "max-body-size", &cfg.MaxBodySize, f.GetInt64),
		override(f, "idle-wait", &cfg.IdleWait, f.GetDuration),
		override(f, "ratio-limit", &cfg.RatioLimit, f.GetFloat64),
		override(f, "parent-urls", &cfg.ParentURLs, f.GetBool),
		override(f, "user-agent", &cfg.UserAgent, f.GetString),
		override(f, "seeds-file", &cfg.SeedsFile, f.GetString),
		override(f, "resume", &cfg.Resume, f.GetBool),
		override(f, "resume-limit", &cfg.ResumeLimit, f.GetInt),
		override(f, "batch", &cfg.BatchSize, f.GetInt),
		override(f, "store", &cfg.StoreDriver, f.GetString),
		override(f, "store-uri", &cfg.StoreURI, f.GetString),
		override(f, "store-database", &cfg.StoreDatabase, f.GetString),
		override(f, "store-collection", &cfg.StoreCollection, f.GetString),
		override(f, "data-dir", &cfg.DataDir, f.GetString),
		override(f, "cache", &cfg.CacheDriver, f.GetString),
		override(f, "cache-uri", &cfg.CacheURI, f.GetString),
		override(f, "cache-namespace", &cfg.CacheNamespace, f.GetString),
		override(f, "metrics-addr", &cfg.MetricsAddr, f.GetString),
		override(f, "json", &cfg.JSONReport, f.GetBool),
		override(f, "markdown", &cfg.MarkdownReport, f.GetBool),
		override(f, "report", &cfg.ReportFile, f.GetString),
	)
}

// override sets *dst from the named flag when the user set it.
func override[T any](f *pflag.FlagSet, name string, dst *T, get func(string) (T, error)) error {
	if !f.Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// boolFlag reads a bool flag from cmd or, failing that, the root's
// persistent flags.
func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}
	return log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
}

// runCrawl opens the store and the cache, connects to Tor, runs the crawl
// and writes the report. Failing to open any backend aborts before the
// first fetch.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, local, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(logger)

	cache, err := openCache(ctx, cfg, local)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("failed to close cache", "error", err)
		}
	}()

	client, stopTor, err := connectTor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopTor()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithMaxRedirects(cfg.MaxRedirects),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithProxySuffixes(cfg.ProxySuffixes...),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithSiteOverrides(cfg.SiteConfigs.Overrides),
		fetcher.WithLogger(logger),
	}
	if client != nil {
		fetchOpts = append(fetchOpts, fetcher.WithTorClient(client))
	}

	arch := archive.New(store,
		archive.WithBatchSize(cfg.BatchSize),
		archive.WithLogger(logger),
		archive.WithObserver(m),
	)
	coord := crawler.New(
		frontier.New(frontier.WithIdleWait(cfg.IdleWait)),
		fetcher.New(fetchOpts...),
		dedup.NewGate(cache),
		arch,
		crawler.WithWorkers(cfg.Workers),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxDuration(cfg.MaxDuration),
		crawler.WithTorOnly(cfg.TorOnly),
		crawler.WithParentURLs(cfg.ParentURLs),
		crawler.WithRatioLimit(cfg.RatioLimit),
		crawler.WithLogger(logger),
		crawler.WithObserver(m),
	)

	if err := seedCrawl(ctx, cfg, coord, logger); err != nil {
		return err
	}

	runErr := coord.Run(ctx)

	// The crawl context may be canceled; the last batch must still land.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := arch.Close(flushCtx); err != nil {
		logger.Error("failed to flush archive", "pending", arch.Pending(), "error", err)
	}

	inserted, rejected := arch.Totals()
	r := report.New(coord.Stats(),
		report.WithVersion(getVersion()),
		report.WithArchiveTotals(inserted, rejected),
		report.WithInterrupted(ctx.Err() != nil),
		report.WithError(runErr),
	)
	if err := writeReport(cfg, r); err != nil {
		logger.Error("failed to write report", "error", err)
	}
	return runErr
}

// seedCrawl fills the frontier from the pending set, the command line and
// the seeds file.
func seedCrawl(ctx context.Context, cfg *config.Config, coord *crawler.Coordinator, logger *slog.Logger) error {
	seeds := slices.Clone(cfg.Seeds)
	if cfg.SeedsFile != "" {
		fromFile, err := readSeedsFile(cfg.SeedsFile)
		if err != nil {
			return err
		}
		seeds = append(seeds, fromFile...)
	}

	resumed := 0
	if cfg.Resume {
		n, err := coord.Resume(ctx, cfg.ResumeLimit)
		if err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}
		resumed = n
	}

	seeded, err := coord.Seed(ctx, seeds)
	if err != nil {
		return fmt.Errorf("failed to seed frontier: %w", err)
	}
	if seeded+resumed == 0 {
		logger.Warn("frontier is empty; every seed was invalid or already claimed by an earlier crawl",
			"seeds", len(seeds), "cache", cfg.CacheDriver)
	}
	return nil
}

func readSeedsFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided seed list is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open seeds file: %w", err)
	}
	defer f.Close()

	seeds, err := frontier.ReadSeeds(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds file %s: %w", path, err)
	}
	return seeds, nil
}

// connectTor returns a client for the proxy, or nil when no suffix is
// routed through it. stop is non-nil whenever err is nil.
func connectTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (client *tor.Client, stop func(), err error) {
	noop := func() {}
	if !cfg.NeedsProxy() {
		return nil, noop, nil
	}
	if cfg.EmbeddedTor {
		return startEmbeddedTor(ctx, cfg, logger)
	}

	client, err = tor.NewClient(cfg.ProxyAddress)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if err := client.CheckConnection(ctx).Err(); err != nil {
		return nil, noop, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
			err, cfg.ProxyAddress)
	}
	logger.Info("tor proxy connection verified", "address", cfg.ProxyAddress)
	return client, noop, nil
}

// startEmbeddedTor starts a Tor daemon with tornago and returns a client
// for its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, func(), error) {
	logger.Info("starting embedded tor daemon; bootstrapping may take a few minutes",
		"timeout", cfg.TorStartupTimeout)

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded tor daemon")
		if err := embedded.Stop(); err != nil {
			logger.Error("failed to stop embedded tor", "error", err)
		}
	}

	client, err := embedded.NewClient()
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if err := client.CheckConnection(ctx).Err(); err != nil {
		stop()
		return nil, nil, fmt.Errorf("embedded tor proxy check failed: %w", err)
	}

	logger.Info("embedded tor daemon started", "socks_addr", embedded.SocksAddr())
	return client, stop, nil
}
