// Package observability provides structured logging, metrics, and
// tracing for eventcore.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger. Returns a new logger with
// event_id and event_type fields.
func EnrichLogger(logger *slog.Logger, eventID, eventType string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
	)
}

// LogPublished logs a successful publish.
func LogPublished(logger *slog.Logger, eventType, eventID string) {
	if logger == nil {
		return
	}
	logger.Info("event published",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
	)
}

// LogPublishSkipped logs a publish attempted against a disabled bus.
func LogPublishSkipped(logger *slog.Logger, eventType string) {
	if logger == nil {
		return
	}
	logger.Debug("bus disabled, skipping event",
		slog.String("event_type", eventType),
	)
}

// LogHandlerError logs a handler failure during delivery. Handler errors
// are isolated, so this is the only place they surface.
func LogHandlerError(logger *slog.Logger, eventID, eventType, subscriptionID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("subscription_id", subscriptionID),
		slog.String("error", err.Error()),
	)
}

// LogStoreAppendError logs a best-effort persistence failure (non-fatal).
func LogStoreAppendError(logger *slog.Logger, eventID, eventType string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event store append failed",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogSubscribed logs a new subscription.
func LogSubscribed(logger *slog.Logger, pattern, subscriptionID string) {
	if logger == nil {
		return
	}
	logger.Debug("subscribed",
		slog.String("pattern", pattern),
		slog.String("subscription_id", subscriptionID),
	)
}

// LogUnknownSubscription logs an unsubscribe for an id that no longer
// exists. Not an error; callers are not required to track liveness.
func LogUnknownSubscription(logger *slog.Logger, subscriptionID string) {
	if logger == nil {
		return
	}
	logger.Warn("subscription not found",
		slog.String("subscription_id", subscriptionID),
	)
}

// LogReplay logs the start of a replay run.
func LogReplay(logger *slog.Logger, count int) {
	if logger == nil {
		return
	}
	logger.Info("replaying events",
		slog.Int("count", count),
	)
}

// LogReplayDone logs a finished replay run with its elapsed time.
func LogReplayDone(logger *slog.Logger, count int, elapsedMs float64) {
	if logger == nil {
		return
	}
	logger.Info("replay complete",
		slog.Int("count", count),
		slog.Float64("elapsed_ms", elapsedMs),
	)
}

// TimedOperation measures the duration of an operation. Returns a
// function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
