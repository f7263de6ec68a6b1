// Package telemetry provides the ambient observability stack the cmd/*
// binaries bootstrap at startup: a zap structured logger and OpenTelemetry
// tracer/meter providers, following the
// pattern every apps/*/cmd/*/main.go in the teacher repo bootstraps by hand.
package telemetry

import "go.uber.org/zap"

// NewLogger builds the process logger. Production builds use zap's JSON
// production config, matching every teacher service's
// `zap.NewProduction()` call; development builds get the human-readable
// console encoder instead.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
