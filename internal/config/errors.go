package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrNoSeed is returned when there is nothing to crawl: no seed URL,
	// no seed file and no resume.
	ErrNoSeed = errors.New("no seed specified: provide URLs, --seeds-file or --resume")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidBatchSize is returned when the archive batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidLimit is returned when a page, time, redirect, body or ratio
	// limit is negative. Zero means "no limit" or "default" depending on the field.
	ErrInvalidLimit = errors.New("invalid limit: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrUnknownStore is returned for a store driver other than sqlite, mongodb or postgres.
	ErrUnknownStore = errors.New("unknown store driver: must be sqlite, mongodb or postgres")

	// ErrUnknownCache is returned for a cache driver other than memory, sqlite or redis.
	ErrUnknownCache = errors.New("unknown cache driver: must be memory, sqlite or redis")

	// ErrMissingURI is returned when a network store or cache has no connection URI.
	ErrMissingURI = errors.New("missing connection uri")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
