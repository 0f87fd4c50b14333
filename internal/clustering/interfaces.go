// Package clustering groups employee home locations into candidate
// shuttle stops under a walking-distance cap, by either a density
// method (DBSCAN) or a capacity method (k-means sized to fleet
// capacity). Both methods are reconciled through a shared residual
// handling pass.
package clustering

import (
	"shuttleplan/internal/models"
)

// Method selects the clustering algorithm.
type Method string

const (
	MethodDensity  Method = "density"
	MethodCapacity Method = "capacity"
)

// EmployeePoint is one clustering input row.
type EmployeePoint struct {
	EmployeeID int64
	Name       string
	Home       models.Coordinates
}

// Result is the clustering engine's output: an ordered stop list plus
// any employees that could not be attached anywhere (always empty after
// the residual pass runs, short of a clustering-then-refine bug).
type Result struct {
	Stops     []models.Stop
	Residual  []EmployeePoint
}

// Engine groups employees into Stops.
type Engine interface {
	Cluster(points []EmployeePoint, walkingCapM float64, maxClusterSize int) (Result, error)
}
