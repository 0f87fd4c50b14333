// Package cvrp implements a capacity- and soft-duration-constrained
// vehicle routing solver over a heterogeneous, priority-ordered fleet.
// No OR-Tools binding exists anywhere in the reference corpus, so the
// solver is a metaheuristic hand-rolled in the teacher's routing-package
// idiom (parallel-cheapest-insertion followed by per-route 2-opt),
// generalized from the teacher's single-depot-implicit balanced router
// into a true depot-indexed CVRP.
package cvrp

// Status tags the outcome of a solve attempt.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusNoSolution Status = "no_solution"
)

// Input is everything the solver needs. DistanceM and DurationSec are
// N x N matrices indexed [from][to] over [depot, stop_1, ..., stop_k];
// index 0 is always the depot. DurationSec must already be
// traffic-scaled by the caller, as must MaxRouteDurationSec.
type Input struct {
	DistanceM           [][]float64
	DurationSec         [][]float64
	Demand              []int // Demand[0] (depot) must be 0
	VehicleCapacities    []int // already reduced by buffer seats
	PriorityCount        int  // first PriorityCount vehicles are priority
	DepotIndex           int
	MaxRouteDurationSec  float64
	TimeBudget           float64 // seconds, informational wall-clock budget
}

// PriorityFixedCost and NonPriorityFixedCost shape the objective so the
// solver fills priority vehicles first; NonPriorityFixedCost must be at
// least 5x PriorityFixedCost per spec.md §4.3.
const (
	PriorityFixedCost    = 100000.0
	NonPriorityFixedCost = 500000.0
	// DurationPenaltyPerSecond is the per-second-over-T_max penalty
	// coefficient; spec.md §4.3 requires it be at least 10,000.
	DurationPenaltyPerSecond = 10000.0
)

// VehicleResult is one vehicle's assignment.
type VehicleResult struct {
	Nodes       []int // node indices, empty slice (not nil) when unused
	DistanceM   float64
	DurationSec float64
	Load        int
}

// Output is the solver's result.
type Output struct {
	Vehicles     []VehicleResult
	TotalDistanceM float64
	VehiclesUsed int
	Status       Status
}

// Solver produces a routing plan for an Input.
type Solver interface {
	Solve(in Input) Output
}
