// Package roadnetwork adapts an OSRM-shaped HTTP routing engine into
// the three operations the planning core needs: a distance/duration
// matrix, turn-by-turn route geometry, and nearest-road snapping with a
// main-road preference. Every operation degrades to a great-circle
// fallback on any upstream failure rather than propagating the error.
package roadnetwork

import (
	"context"

	"shuttleplan/internal/models"
)

// MatrixResult is the output of a distance/duration matrix request.
type MatrixResult struct {
	DistancesM   [][]float64
	DurationsSec [][]float64
	Fallback     bool
}

// Leg is one edge of a route's geometry.
type Leg struct {
	DistanceM   float64
	DurationSec float64
}

// RouteResult is the output of a route-geometry request.
type RouteResult struct {
	Polyline     []models.Coordinates
	DistanceM    float64
	DurationSec  float64
	Legs         []Leg
	Fallback     bool
}

// SnapResult is the output of a nearest-road-snap request.
type SnapResult struct {
	Original     models.Coordinates
	Snapped      models.Coordinates
	WalkDistance float64
	RoadName     string
	Valid        bool
	Fallback     bool
}

// Adapter is the road-network collaborator used by the orchestrator and
// the plan editor.
type Adapter interface {
	Matrix(ctx context.Context, points []models.Coordinates, excludeTolls bool) (MatrixResult, error)
	RouteGeometry(ctx context.Context, points []models.Coordinates, excludeTolls bool) (RouteResult, error)
	SnapToRoad(ctx context.Context, point models.Coordinates, maxDistanceM float64) (SnapResult, error)
	SnapBatch(ctx context.Context, points []models.Coordinates, maxDistanceM float64) ([]SnapResult, error)
	Health(ctx context.Context) bool
}
