package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LogRequest logs a Graph API request by outcome
func LogRequest(method, url string, statusCode int, durationMS float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMS,
	}

	switch {
	case statusCode >= 500:
		GetLogger().ErrorWithFields("Graph API server error", fields)
	case statusCode >= 400:
		GetLogger().WarnWithFields("Graph API client error", fields)
	default:
		GetLogger().DebugWithFields("Graph API request completed", fields)
	}
}

// LogFetchProgress logs media pagination progress
func LogFetchProgress(page, fetched, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(fetched) / float64(total) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"page":       page,
		"fetched":    fetched,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Fetching media")
}

// LogMissingCentroid records a resolved country that has no centroid entry
func LogMissingCentroid(country string, posts int) {
	GetLogger().WithFields(map[string]interface{}{
		"country": country,
		"posts":   posts,
		"type":    "data_quality",
	}).Warn("Country has no centroid")
}

// LogMetrics logs counters for an operation
func LogMetrics(operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}

	GetLogger().InfoWithFields("Operation metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                   {}
func (n nopLogger) Info(string)                                    {}
func (n nopLogger) Warn(string)                                    {}
func (n nopLogger) Error(string)                                   {}
func (n nopLogger) WithField(string, interface{}) Logger           { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n nopLogger) WithError(error) Logger                         { return n }
func (n nopLogger) WithContext(context.Context) Logger             { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n nopLogger) GetZerolog() *zerolog.Logger                    { return nil }
