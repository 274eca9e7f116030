// Package log builds the application's slog loggers.
//
// Every logger returned here is wrapped in a SecureHandler, which masks:
//   - request headers and cookies taken from the per-site configuration
//   - values that look like tokens, keys or Authorization headers
//   - the user and password part of connection URIs
//     ("mongodb://crawler:pw@db:27017" is logged as "mongodb://***@db:27017")
//
// Masking also applies in verbose mode, so logs can be shared as they are.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
