package clustering

import (
	"math"
	"math/rand"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"shuttleplan/internal/geo"
	"shuttleplan/internal/models"
)

// capacitySeed fixes k-means' initial-centroid randomness so runs over
// the same input are reproducible, per spec.md §9's determinism note.
const capacitySeed = 42

// CapacityEngine estimates k = ceil(n/maxClusterSize) clusters and runs
// k-means over raw (lat, lng), then rejects any member whose distance
// to its centroid exceeds the walking cap into the residual.
type CapacityEngine struct{}

// NewCapacityEngine constructs the capacity-bounded clustering engine.
func NewCapacityEngine() *CapacityEngine {
	return &CapacityEngine{}
}

// Cluster implements Engine.
func (e *CapacityEngine) Cluster(points []EmployeePoint, walkingCapM float64, maxClusterSize int) (Result, error) {
	if len(points) == 0 {
		return Result{Stops: []models.Stop{}}, nil
	}
	if maxClusterSize <= 0 {
		maxClusterSize = 1
	}

	k := int(math.Ceil(float64(len(points)) / float64(maxClusterSize)))
	if k > len(points) {
		k = len(points)
	}

	var obs clusters.Observations
	for _, p := range points {
		obs = append(obs, clusters.Coordinates{p.Home.Lat, p.Home.Lng})
	}

	rand.Seed(capacitySeed)
	km := kmeans.New()
	result, err := km.Partition(obs, k)
	if err != nil {
		return Result{}, err
	}

	stops := make([]models.Stop, 0, k)
	var residual []EmployeePoint
	key := 0
	for _, c := range result {
		centroid := models.Coordinates{Lat: c.Center[0], Lng: c.Center[1]}
		var memberIdx []int
		for obsIdx, o := range c.Observations {
			coord, ok := o.(clusters.Coordinates)
			if !ok {
				continue
			}
			home := models.Coordinates{Lat: coord[0], Lng: coord[1]}
			idx := findPointIndex(points, home, obsIdx)
			if idx < 0 {
				continue
			}
			memberIdx = append(memberIdx, idx)
		}

		var stop models.Stop
		stop.ClusterKey = key
		stop.Centroid = centroid
		maxWalk := 0.0
		for _, idx := range memberIdx {
			d := geo.DistanceMeters(centroid, points[idx].Home)
			if d > walkingCapM {
				residual = append(residual, points[idx])
				continue
			}
			if d > maxWalk {
				maxWalk = d
			}
			stop.Members = append(stop.Members, models.StopMember{
				EmployeeID:   points[idx].EmployeeID,
				Name:         points[idx].Name,
				WalkDistance: d,
			})
		}
		if len(stop.Members) == 0 {
			continue
		}
		// Recenter on the accepted members only, matching the Python
		// original's "recalculate centroid for valid members" step.
		stop.Centroid = geo.Centroid(memberCoords(stop, points))
		stop.MaxWalk = recomputeMaxWalk(stop)
		stops = append(stops, stop)
		key++
	}

	stops, residual = attachResidual(stops, residual, walkingCapM, key)
	stops = appendIndividualStops(stops, residual)

	return Result{Stops: stops}, nil
}

// findPointIndex locates the EmployeePoint matching a k-means
// observation's coordinates. k-means does not preserve input identity,
// so matching is by (lat,lng) equality with a fallback scan.
func findPointIndex(points []EmployeePoint, home models.Coordinates, hint int) int {
	if hint >= 0 && hint < len(points) && points[hint].Home == home {
		return hint
	}
	for i, p := range points {
		if p.Home == home {
			return i
		}
	}
	return -1
}

func memberCoords(stop models.Stop, points []EmployeePoint) []models.Coordinates {
	byID := make(map[int64]models.Coordinates, len(points))
	for _, p := range points {
		byID[p.EmployeeID] = p.Home
	}
	coords := make([]models.Coordinates, 0, len(stop.Members))
	for _, m := range stop.Members {
		coords = append(coords, byID[m.EmployeeID])
	}
	return coords
}

// recomputeMaxWalk returns the largest recorded walk distance among a
// stop's members. Walk distances were measured against the pre-recenter
// k-means centroid and are not re-measured after the recenter, so a
// member's recorded distance can differ from its distance to the final
// centroid.
func recomputeMaxWalk(stop models.Stop) float64 {
	max := 0.0
	for _, m := range stop.Members {
		if m.WalkDistance > max {
			max = m.WalkDistance
		}
	}
	return max
}
