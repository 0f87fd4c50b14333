package cvrp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridInput builds a depot-at-origin, n-stops-in-a-line input with
// 100 m of distance and 60 s of duration per hop.
func gridInput(n int, capacity int, nVehicles int) Input {
	size := n + 1
	dist := make([][]float64, size)
	dur := make([][]float64, size)
	for i := range dist {
		dist[i] = make([]float64, size)
		dur[i] = make([]float64, size)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i != j {
				d := float64(abs(i - j))
				dist[i][j] = d * 100
				dur[i][j] = d * 60
			}
		}
	}
	demand := make([]int, size)
	for i := 1; i < size; i++ {
		demand[i] = 1
	}
	caps := make([]int, nVehicles)
	for i := range caps {
		caps[i] = capacity
	}
	return Input{
		DistanceM:           dist,
		DurationSec:         dur,
		Demand:              demand,
		VehicleCapacities:   caps,
		PriorityCount:       0,
		DepotIndex:          0,
		MaxRouteDurationSec: 3900,
		TimeBudget:          30,
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestSolve_AllNodesAssignedWhenCapacitySuffices(t *testing.T) {
	in := gridInput(8, 16, 2)
	out := NewHeuristicSolver(nil).Solve(in)

	require.NotEqual(t, StatusNoSolution, out.Status)

	seen := map[int]bool{}
	for _, v := range out.Vehicles {
		for _, n := range v.Nodes {
			if n == 0 {
				continue
			}
			seen[n] = true
		}
	}
	assert.Len(t, seen, 8)
}

func TestSolve_EmptyRoutesAreEmptySlice(t *testing.T) {
	in := gridInput(2, 16, 3)
	out := NewHeuristicSolver(nil).Solve(in)

	unused := 0
	for _, v := range out.Vehicles {
		if len(v.Nodes) == 0 {
			unused++
		}
	}
	assert.GreaterOrEqual(t, unused, 1)
	assert.Equal(t, len(out.Vehicles)-out.VehiclesUsed, unused)
}

func TestSolve_CapacityNeverExceeded(t *testing.T) {
	in := gridInput(20, 5, 5)
	out := NewHeuristicSolver(nil).Solve(in)

	for _, v := range out.Vehicles {
		assert.LessOrEqual(t, v.Load, 5)
	}
}

func TestSolve_NoSolutionWhenFleetTooSmall(t *testing.T) {
	in := gridInput(10, 2, 1)
	out := NewHeuristicSolver(nil).Solve(in)

	assert.Equal(t, StatusNoSolution, out.Status)
}

func TestSolve_PriorityVehiclesPreferredWhenTied(t *testing.T) {
	in := gridInput(3, 16, 2)
	in.PriorityCount = 1
	out := NewHeuristicSolver(nil).Solve(in)

	assert.Greater(t, len(out.Vehicles[0].Nodes), 0)
}
