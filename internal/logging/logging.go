// Package logging constructs the process-wide zap logger. Components
// tag their entries with a "component" field carrying the same
// vocabulary the teacher codebase used as bracketed log prefixes
// ("osrm", "cvrp", "orchestrator", "editor").
package logging

import "go.uber.org/zap"

// New builds a production zap logger. Set development=true for
// console-friendly output during local runs of cmd/planner.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Component returns a child logger tagged with the given component name.
func Component(logger *zap.Logger, name string) *zap.Logger {
	return logger.With(zap.String("component", name))
}
