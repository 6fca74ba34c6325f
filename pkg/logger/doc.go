// Package logger provides a slog factory plus typed attribute helpers for
// the identifiers that recur across the dispatch pipeline (user, channel,
// notification, batch).
//
// Components accept a *slog.Logger through their functional options and
// default to slog.Default(), so the factory is only needed at process
// startup:
//
//	log := logger.New(logger.WithLevel(slog.LevelDebug), logger.WithFormat(logger.FormatText))
//	slog.SetDefault(log)
//
// Attribute helpers return an empty Attr for zero values, which slog
// silently drops, so call sites never need nil checks.
package logger
