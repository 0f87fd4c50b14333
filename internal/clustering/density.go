package clustering

import (
	"shuttleplan/internal/geo"
	"shuttleplan/internal/models"
)

// DensityEngine clusters employees with a DBSCAN-style density pass over
// a precomputed geodesic distance matrix: eps = the walking cap, minimum
// cluster size 2. No Go DBSCAN implementation is present anywhere in the
// reference corpus, so this is hand-rolled directly off the density
// method's original Python implementation rather than imported.
type DensityEngine struct{}

// NewDensityEngine constructs the default clustering engine.
func NewDensityEngine() *DensityEngine {
	return &DensityEngine{}
}

const minClusterSize = 2

// Cluster implements Engine. maxClusterSize is unused by the density
// method; it is accepted to satisfy the shared interface.
func (e *DensityEngine) Cluster(points []EmployeePoint, walkingCapM float64, _ int) (Result, error) {
	if len(points) == 0 {
		return Result{Stops: []models.Stop{}}, nil
	}

	coords := make([]models.Coordinates, len(points))
	for i, p := range points {
		coords[i] = p.Home
	}
	dist := geo.DistanceMatrix(coords)

	labels := dbscan(dist, walkingCapM, minClusterSize)

	byLabel := map[int][]int{} // label -> point indices
	var residual []EmployeePoint
	for i, label := range labels {
		if label == -1 {
			residual = append(residual, points[i])
			continue
		}
		byLabel[label] = append(byLabel[label], i)
	}

	stops := make([]models.Stop, 0, len(byLabel))
	key := 0
	for _, idxs := range byLabel {
		stop := buildStop(key, idxs, points, coords)
		stops = append(stops, stop)
		key++
	}

	stops, residual = attachResidual(stops, residual, walkingCapM, key)
	stops = appendIndividualStops(stops, residual)

	return Result{Stops: stops, Residual: nil}, nil
}

// buildStop computes a Stop's centroid and per-member walk distances
// from a set of point indices belonging to one DBSCAN cluster.
func buildStop(key int, idxs []int, points []EmployeePoint, coords []models.Coordinates) models.Stop {
	members := make([]models.Coordinates, len(idxs))
	for i, idx := range idxs {
		members[i] = coords[idx]
	}
	centroid := geo.Centroid(members)

	stop := models.Stop{
		ClusterKey: key,
		Centroid:   centroid,
	}
	maxWalk := 0.0
	for _, idx := range idxs {
		d := geo.DistanceMeters(centroid, coords[idx])
		if d > maxWalk {
			maxWalk = d
		}
		stop.Members = append(stop.Members, models.StopMember{
			EmployeeID:   points[idx].EmployeeID,
			Name:         points[idx].Name,
			WalkDistance: d,
		})
	}
	stop.MaxWalk = maxWalk
	return stop
}

// dbscan runs density-based clustering over a precomputed distance
// matrix. Returned labels use -1 for noise, otherwise a 0-based cluster
// id. Deterministic given the fixed input order (no randomness).
func dbscan(dist [][]float64, eps float64, minPts int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -2 // unvisited
	}

	neighbors := func(i int) []int {
		var ns []int
		for j := 0; j < n; j++ {
			if j != i && dist[i][j] <= eps {
				ns = append(ns, j)
			}
		}
		return ns
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != -2 {
			continue
		}
		ns := neighbors(i)
		if len(ns)+1 < minPts {
			labels[i] = -1
			continue
		}

		labels[i] = clusterID
		queue := append([]int{}, ns...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == -1 {
				labels[j] = clusterID
			}
			if labels[j] != -2 {
				continue
			}
			labels[j] = clusterID

			jns := neighbors(j)
			if len(jns)+1 >= minPts {
				queue = append(queue, jns...)
			}
		}
		clusterID++
	}

	return labels
}
