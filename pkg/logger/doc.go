// Package logger provides structured logging for the travel map tooling.
//
// It wraps zerolog behind a small Logger interface with:
//   - Levels (Debug, Info, Warn, Error)
//   - Structured fields via WithField, WithFields and the *WithFields methods
//   - Colored console output on stderr
//   - Rotating file output through lumberjack when logging.file is set
//   - A global logger, a no-op logger and a capturing TestLogger
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	logger.Info("Fetch started")
//	logger.WithField("country", "Peru").Info("Country aggregated")
//	logger.WithError(err).Error("Failed to save travel data")
//
// Rotation honours logging.max_size (MB), max_backups, max_age (days) and
// compress.
package logger
