// Package geo provides great-circle distance helpers shared by the
// clustering engine and the road-network adapter's fallback path.
package geo

import (
	geolib "github.com/kellydunn/golang-geo"

	"shuttleplan/internal/models"
)

// DistanceMeters returns the geodesic distance between two points.
func DistanceMeters(a, b models.Coordinates) float64 {
	pa := geolib.NewPoint(a.Lat, a.Lng)
	pb := geolib.NewPoint(b.Lat, b.Lng)
	return pa.GreatCircleDistance(pb) * 1000
}

// TortuosityFactor models the extra road distance over a straight line,
// used by the road-network adapter's fallback and nowhere else.
const TortuosityFactor = 1.4

// FallbackSpeedMetersPerSec is the assumed road speed (30 km/h) used to
// derive a duration from a fallback distance.
const FallbackSpeedMetersPerSec = 30.0 * 1000.0 / 3600.0

// DistanceMatrix computes the full pairwise geodesic distance matrix in
// meters for the given points. Self-distances are zero.
func DistanceMatrix(points []models.Coordinates) [][]float64 {
	n := len(points)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := DistanceMeters(points[i], points[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}

// Centroid returns the arithmetic mean of a set of points.
func Centroid(points []models.Coordinates) models.Coordinates {
	if len(points) == 0 {
		return models.Coordinates{}
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return models.Coordinates{Lat: lat / n, Lng: lng / n}
}
