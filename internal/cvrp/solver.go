package cvrp

import (
	"go.uber.org/zap"
)

// HeuristicSolver is a parallel-cheapest-insertion solver with a
// per-route 2-opt refinement pass, grounded on the teacher's
// BalancedRouter (round-robin insertion + 2-opt + load-balancing) but
// generalized into a depot-indexed CVRP: fixed vehicle costs shape
// which vehicle absorbs each insertion, and a route's soft duration
// overage is priced into the insertion cost rather than forbidden.
type HeuristicSolver struct {
	log *zap.Logger
}

// NewHeuristicSolver constructs the default solver.
func NewHeuristicSolver(log *zap.Logger) *HeuristicSolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &HeuristicSolver{log: log}
}

type vehicleState struct {
	capacity  int
	fixedCost float64
	nodes     []int // node indices, excluding depot
	load      int
}

// Solve implements Solver.
func (s *HeuristicSolver) Solve(in Input) Output {
	nVehicles := len(in.VehicleCapacities)
	vehicles := make([]*vehicleState, nVehicles)
	for i := range vehicles {
		cost := NonPriorityFixedCost
		if i < in.PriorityCount || in.PriorityCount == 0 {
			cost = PriorityFixedCost
		}
		vehicles[i] = &vehicleState{capacity: in.VehicleCapacities[i], fixedCost: cost}
	}

	depot := in.DepotIndex
	var pending []int
	for node := 0; node < len(in.Demand); node++ {
		if node == depot {
			continue
		}
		pending = append(pending, node)
	}

	s.parallelCheapestInsertion(in, vehicles, pending)

	assigned := 0
	for _, v := range vehicles {
		assigned += len(v.nodes)
	}

	for _, v := range vehicles {
		if len(v.nodes) >= 3 {
			v.nodes = twoOpt(in, depot, v.nodes)
		}
	}

	out := Output{Vehicles: make([]VehicleResult, nVehicles)}
	for i, v := range vehicles {
		if len(v.nodes) == 0 {
			out.Vehicles[i] = VehicleResult{Nodes: []int{}}
			continue
		}
		route := append([]int{depot}, v.nodes...)
		route = append(route, depot)
		dist, dur := routeMetrics(in, route)
		out.Vehicles[i] = VehicleResult{Nodes: route, DistanceM: dist, DurationSec: dur, Load: v.load}
		out.TotalDistanceM += dist
		out.VehiclesUsed++
	}

	if assigned < len(pending) {
		out.Status = StatusNoSolution
		s.log.Warn("cvrp solve left nodes unassigned",
			zap.Int("unassigned", len(pending)-assigned), zap.Int("vehicles", nVehicles))
	} else if len(pending) == 0 {
		out.Status = StatusOptimal
	} else {
		out.Status = StatusFeasible
	}

	return out
}

// parallelCheapestInsertion repeatedly finds the single cheapest
// (node, vehicle, position) insertion across all remaining nodes and
// all vehicles, mirroring OR-Tools' PARALLEL_CHEAPEST_INSERTION first
// solution strategy: every candidate competes globally each round
// rather than filling one route before starting the next.
func (s *HeuristicSolver) parallelCheapestInsertion(in Input, vehicles []*vehicleState, pending []int) {
	remaining := append([]int{}, pending...)

	for len(remaining) > 0 {
		bestCost := -1.0
		bestNodeIdx := -1
		bestVehicle := -1
		bestPos := -1
		found := false

		for ni, node := range remaining {
			demand := in.Demand[node]
			for vi, v := range vehicles {
				if v.load+demand > v.capacity {
					continue
				}
				for pos := 0; pos <= len(v.nodes); pos++ {
					cost := insertionCost(in, v, node, pos)
					if !found || cost < bestCost {
						bestCost = cost
						bestNodeIdx = ni
						bestVehicle = vi
						bestPos = pos
						found = true
					}
				}
			}
		}

		if !found {
			break // no vehicle has capacity left for any remaining node
		}

		node := remaining[bestNodeIdx]
		v := vehicles[bestVehicle]
		v.nodes = append(v.nodes[:bestPos], append([]int{node}, v.nodes[bestPos:]...)...)
		v.load += in.Demand[node]
		remaining = append(remaining[:bestNodeIdx], remaining[bestNodeIdx+1:]...)
	}
}

// insertionCost is the arc-distance delta of inserting node at pos,
// plus the vehicle's fixed cost if this insertion would open it for
// the first time, plus the marginal soft-duration-overage penalty.
func insertionCost(in Input, v *vehicleState, node, pos int) float64 {
	depot := in.DepotIndex

	prev := depot
	if pos > 0 {
		prev = v.nodes[pos-1]
	}
	next := depot
	if pos < len(v.nodes) {
		next = v.nodes[pos]
	}

	arcCost := in.DistanceM[prev][node] + in.DistanceM[node][next] - in.DistanceM[prev][next]

	cost := arcCost
	if len(v.nodes) == 0 {
		cost += v.fixedCost
	}

	beforeDur := routeDurationOnly(in, depot, v.nodes)
	afterNodes := append(append([]int{}, v.nodes[:pos]...), append([]int{node}, v.nodes[pos:]...)...)
	afterDur := routeDurationOnly(in, depot, afterNodes)

	beforePenalty := overagePenalty(beforeDur, in.MaxRouteDurationSec)
	afterPenalty := overagePenalty(afterDur, in.MaxRouteDurationSec)
	cost += afterPenalty - beforePenalty

	return cost
}

func overagePenalty(durationSec, maxDurationSec float64) float64 {
	if maxDurationSec <= 0 || durationSec <= maxDurationSec {
		return 0
	}
	return (durationSec - maxDurationSec) * DurationPenaltyPerSecond
}

func routeDurationOnly(in Input, depot int, nodes []int) float64 {
	if len(nodes) == 0 {
		return 0
	}
	full := append([]int{depot}, nodes...)
	full = append(full, depot)
	var total float64
	for i := 0; i+1 < len(full); i++ {
		total += in.DurationSec[full[i]][full[i+1]]
	}
	return total
}

func routeMetrics(in Input, route []int) (distanceM, durationSec float64) {
	for i := 0; i+1 < len(route); i++ {
		distanceM += in.DistanceM[route[i]][route[i+1]]
		durationSec += in.DurationSec[route[i]][route[i+1]]
	}
	return distanceM, durationSec
}

// twoOpt reduces a single route's distance by reversing segments,
// grounded on the teacher's twoOpt, here driven by the distance matrix
// directly instead of a live distance-calculator call.
func twoOpt(in Input, depot int, nodes []int) []int {
	if len(nodes) < 3 {
		return nodes
	}

	route := append([]int{}, nodes...)
	improved := true
	for improved {
		improved = false
		for i := 0; i < len(route)-1; i++ {
			for j := i + 2; j < len(route); j++ {
				before := depot
				if i > 0 {
					before = route[i-1]
				}
				after := depot
				if j+1 < len(route) {
					after = route[j+1]
				}

				currentCost := in.DistanceM[before][route[i]] + in.DistanceM[route[j]][after]
				newCost := in.DistanceM[before][route[j]] + in.DistanceM[route[i]][after]

				if newCost < currentCost {
					reverse(route, i, j)
					improved = true
				}
			}
		}
	}
	return route
}

func reverse(nodes []int, i, j int) {
	for i < j {
		nodes[i], nodes[j] = nodes[j], nodes[i]
		i++
		j--
	}
}
