package clustering

import (
	"shuttleplan/internal/geo"
	"shuttleplan/internal/models"
)

// attachResidual tries to attach each residual employee to the first
// existing stop within walkingCapM, updating that stop's max walk
// distance. nextKey is the cluster key to hand out if a later pass
// needs to mint new stops (unused here, kept for symmetry with callers
// that append individual stops afterward).
func attachResidual(stops []models.Stop, residual []EmployeePoint, walkingCapM float64, nextKey int) ([]models.Stop, []EmployeePoint) {
	_ = nextKey
	var stillUnclustered []EmployeePoint

	for _, emp := range residual {
		attached := false
		for i := range stops {
			if stops[i].Individual {
				continue
			}
			d := geo.DistanceMeters(stops[i].Centroid, emp.Home)
			if d <= walkingCapM {
				stops[i].Members = append(stops[i].Members, models.StopMember{
					EmployeeID:   emp.EmployeeID,
					Name:         emp.Name,
					WalkDistance: d,
				})
				if d > stops[i].MaxWalk {
					stops[i].MaxWalk = d
				}
				attached = true
				break
			}
		}
		if !attached {
			stillUnclustered = append(stillUnclustered, emp)
		}
	}

	return stops, stillUnclustered
}

// appendIndividualStops synthesizes a single-member, zero-walk stop for
// every employee that could not be attached to any cluster or existing
// stop, per spec.md §4.1's residual handling.
func appendIndividualStops(stops []models.Stop, residual []EmployeePoint) []models.Stop {
	key := 1000
	for _, emp := range residual {
		stops = append(stops, models.Stop{
			ClusterKey: key,
			Centroid:   emp.Home,
			Members: []models.StopMember{{
				EmployeeID:   emp.EmployeeID,
				Name:         emp.Name,
				WalkDistance: 0,
			}},
			MaxWalk:    0,
			Individual: true,
		})
		key++
	}
	return stops
}
