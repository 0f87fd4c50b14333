package roadnetwork

import (
	"shuttleplan/internal/geo"
	"shuttleplan/internal/models"
)

// fallbackMatrix computes great-circle distances and 30km/h x 1.4
// tortuosity-factor durations for every pair of points, per spec.md
// §4.2's failure semantics.
func fallbackMatrix(points []models.Coordinates) MatrixResult {
	n := len(points)
	distances := make([][]float64, n)
	durations := make([][]float64, n)
	for i := range distances {
		distances[i] = make([]float64, n)
		durations[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := geo.DistanceMeters(points[i], points[j])
			distances[i][j] = d
			durations[i][j] = (d * geo.TortuosityFactor) / geo.FallbackSpeedMetersPerSec
		}
	}
	return MatrixResult{DistancesM: distances, DurationsSec: durations, Fallback: true}
}

// fallbackRoute builds a straight-line polyline through points and sums
// geodesic leg distances scaled by the tortuosity factor.
func fallbackRoute(points []models.Coordinates) RouteResult {
	legs := make([]Leg, 0, len(points)-1)
	var totalDist float64
	for i := 0; i+1 < len(points); i++ {
		d := geo.DistanceMeters(points[i], points[i+1]) * geo.TortuosityFactor
		dur := d / geo.FallbackSpeedMetersPerSec
		legs = append(legs, Leg{DistanceM: d, DurationSec: dur})
		totalDist += d
	}
	var totalDur float64
	for _, l := range legs {
		totalDur += l.DurationSec
	}
	return RouteResult{
		Polyline:    points,
		DistanceM:   totalDist,
		DurationSec: totalDur,
		Legs:        legs,
		Fallback:    true,
	}
}

// fallbackSnap returns the input point unchanged with valid=false, per
// spec.md §4.2's snap fallback semantics.
func fallbackSnap(point models.Coordinates) SnapResult {
	return SnapResult{
		Original: point,
		Snapped:  point,
		Valid:    false,
		Fallback: true,
	}
}
