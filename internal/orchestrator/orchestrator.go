// Package orchestrator runs the end-to-end plan-creation pipeline:
// cluster employees into stops, snap stops to the road network, build a
// traffic-scaled distance/duration matrix, solve the CVRP with
// fleet-escalation retry, enrich routes with turn-by-turn geometry, and
// persist the result in a single transaction. It is the only caller that
// sequences the Clustering Engine, Road-Network Adapter, CVRP Solver and
// Plan Repository together.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shuttleplan/internal/clustering"
	"shuttleplan/internal/config"
	"shuttleplan/internal/cvrp"
	"shuttleplan/internal/geo"
	"shuttleplan/internal/models"
	"shuttleplan/internal/planerr"
	"shuttleplan/internal/roadnetwork"
	"shuttleplan/internal/store"
)

// maxFleetEscalations bounds the retry loop in step 7 of the pipeline.
const maxFleetEscalations = 5

// Orchestrator wires the planning core's collaborators together.
type Orchestrator struct {
	Employees store.EmployeeRepository
	Shifts    store.ShiftRepository
	Plans     store.PlanRepository
	Roads     roadnetwork.Adapter
	Cluster   clustering.Engine
	Solver    cvrp.Solver
	log       *zap.Logger
}

// New constructs an Orchestrator from its collaborators.
func New(employees store.EmployeeRepository, shifts store.ShiftRepository, plans store.PlanRepository,
	roads roadnetwork.Adapter, clusterEngine clustering.Engine, solver cvrp.Solver, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Employees: employees,
		Shifts:    shifts,
		Plans:     plans,
		Roads:     roads,
		Cluster:   clusterEngine,
		Solver:    solver,
		log:       log,
	}
}

// Request is everything the orchestrator needs to produce a new plan.
type Request struct {
	Name   string
	Depot  models.Coordinates
	Config models.PlanConfig
}

// CreatePlan runs the full pipeline described in spec.md §4.4 and
// returns the persisted Plan and its Routes.
func (o *Orchestrator) CreatePlan(ctx context.Context, req Request) (*models.Plan, []models.Route, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	// Step 1: load employees, optionally filtered by shift.
	employees, err := o.Employees.List(ctx, req.Config.ShiftID)
	if err != nil {
		return nil, nil, planerr.Wrap(planerr.PersistenceFailure, "failed to load employees", err)
	}
	if len(employees) == 0 {
		return nil, nil, planerr.New(planerr.InputInvalid, "no employees matched the requested shift")
	}

	var shiftName string
	if req.Config.ShiftID != nil {
		shift, err := o.Shifts.GetByID(ctx, *req.Config.ShiftID)
		if err != nil && err != store.ErrNotFound {
			return nil, nil, planerr.Wrap(planerr.PersistenceFailure, "failed to load shift", err)
		}
		if shift != nil {
			shiftName = shift.Name
		}
	}

	points := make([]clustering.EmployeePoint, len(employees))
	for i, e := range employees {
		if !e.Home.Valid() {
			return nil, nil, planerr.New(planerr.InputInvalid, fmt.Sprintf("employee %d has an invalid home location", e.ID))
		}
		points[i] = clustering.EmployeePoint{EmployeeID: e.ID, Name: e.Name, Home: e.Home}
	}

	// Step 2: cluster employees into candidate stops.
	maxClusterSize := req.Config.LargeCapacity
	if req.Config.SmallCapacity > maxClusterSize {
		maxClusterSize = req.Config.SmallCapacity
	}
	clusterResult, err := o.Cluster.Cluster(points, req.Config.WalkingCapM, maxClusterSize)
	if err != nil {
		return nil, nil, planerr.Wrap(planerr.InputInvalid, "clustering failed", err)
	}
	stops := clusterResult.Stops
	o.log.Info("clustered employees", zap.Int("employees", len(employees)), zap.Int("stops", len(stops)))

	// Step 3: snap stops to the road network in parallel and recompute
	// per-employee walking distances against the snapped centroid.
	degraded := false
	centroids := make([]models.Coordinates, len(stops))
	for i, s := range stops {
		centroids[i] = s.Centroid
	}
	snapResults, err := o.Roads.SnapBatch(ctx, centroids, req.Config.WalkingCapM)
	if err != nil {
		return nil, nil, planerr.Wrap(planerr.RoutingEngineUnavailable, "failed to snap stops to the road network", err)
	}
	homeByID := make(map[int64]models.Coordinates, len(employees))
	for _, e := range employees {
		homeByID[e.ID] = e.Home
	}

	for i := range stops {
		snap := snapResults[i]
		if snap.Fallback {
			degraded = true
		}
		if snap.Valid {
			original := stops[i].Centroid
			stops[i].Original = &original
			stops[i].Centroid = snap.Snapped
			stops[i].RoadName = snap.RoadName
			recomputeWalkDistances(&stops[i], homeByID)
		}
	}

	// Step 4: build the distance/duration matrix over [depot, stops...].
	matrixPoints := make([]models.Coordinates, len(stops)+1)
	matrixPoints[0] = req.Depot
	for i, s := range stops {
		matrixPoints[i+1] = s.Centroid
	}
	matrix, err := o.Roads.Matrix(ctx, matrixPoints, req.Config.ExcludeTolls)
	if err != nil {
		return nil, nil, planerr.Wrap(planerr.RoutingEngineUnavailable, "failed to build the distance matrix", err)
	}
	if matrix.Fallback {
		degraded = true
	}

	// Step 5: traffic-scale the duration matrix and T_max.
	trafficFactor := config.TrafficFactor(req.Config.TrafficMode)
	scaledDurations := scaleMatrix(matrix.DurationsSec, trafficFactor)
	maxRouteDurationSec := req.Config.MaxTravelTimeMin * 60 * trafficFactor

	demand := make([]int, len(matrixPoints))
	for i, s := range stops {
		demand[i+1] = s.Demand()
	}

	cfg := req.Config // local mutable copy; fleet escalation grows this, never the caller's config
	capacities, priorityCount, err := buildFleet(cfg)
	if err != nil {
		return nil, nil, err
	}

	// Step 6: pick the solver time budget by problem size.
	timeBudget := solverTimeBudget(len(stops))

	// Step 7: solve with fleet-escalation retry.
	var solved cvrp.Output
	solved.Status = cvrp.StatusNoSolution
	for attempt := 0; attempt <= maxFleetEscalations; attempt++ {
		in := cvrp.Input{
			DistanceM:           matrix.DistancesM,
			DurationSec:         scaledDurations,
			Demand:              demand,
			VehicleCapacities:   capacities,
			PriorityCount:       priorityCount,
			DepotIndex:          0,
			MaxRouteDurationSec: maxRouteDurationSec,
			TimeBudget:          timeBudget,
		}
		solved = o.Solver.Solve(in)
		if solved.Status != cvrp.StatusNoSolution && solved.VehiclesUsed > 0 {
			break
		}
		if attempt == maxFleetEscalations {
			break
		}
		capacities, priorityCount = escalateFleet(&cfg)
		o.log.Warn("cvrp infeasible, escalating fleet",
			zap.Int("attempt", attempt+1), zap.Int("vehicles", len(capacities)))
	}
	if solved.Status == cvrp.StatusNoSolution || solved.VehiclesUsed == 0 {
		return nil, nil, planerr.New(planerr.NoSolution, "time constraint infeasible")
	}
	req.Config = cfg // escalation may have grown the fleet; persist the config that actually solved

	// Step 8 & 9: enrich each used route with geometry and endpoints.
	routes := make([]models.Route, 0, solved.VehiclesUsed)
	vehicleTypes := fleetVehicleTypes(cfg)
	for i, v := range solved.Vehicles {
		if len(v.Nodes) == 0 {
			continue
		}
		route, routeDegraded, err := o.buildRoute(ctx, req, stops, v, i, vehicleTypes[i], trafficFactor)
		if err != nil {
			return nil, nil, planerr.Wrap(planerr.RoutingEngineUnavailable, "failed to enrich route geometry", err)
		}
		if routeDegraded {
			degraded = true
		}
		routes = append(routes, route)
	}

	plan := &models.Plan{
		Name:      req.Name,
		Depot:     req.Depot,
		Config:    req.Config,
		ShiftName: shiftName,
		Degraded:  degraded,
	}
	for _, r := range routes {
		plan.TotalVehicles++
		plan.TotalDistanceM += r.DistanceM
		plan.TotalDurationSec += r.DurationSec
		plan.TotalPassengers += r.Passengers
	}

	// Step 10: persist atomically.
	persisted, err := o.Plans.CreatePlan(ctx, plan, routes)
	if err != nil {
		return nil, nil, planerr.Wrap(planerr.PersistenceFailure, "failed to persist plan", err)
	}

	o.log.Info("plan created",
		zap.Int64("plan_id", persisted.ID),
		zap.Int("routes", len(routes)),
		zap.Bool("degraded", degraded),
		zap.Duration("elapsed", time.Since(start)))

	return persisted, routes, nil
}

func validateRequest(req Request) error {
	if req.Config.WalkingCapM < 50 || req.Config.WalkingCapM > 2000 {
		return planerr.New(planerr.InputInvalid, "walking_cap_m must be within [50, 2000]")
	}
	if !req.Depot.Valid() {
		return planerr.New(planerr.InputInvalid, "depot location is invalid")
	}
	if req.Config.NumSmall+req.Config.NumLarge == 0 {
		return planerr.New(planerr.InputInvalid, "fleet must have at least one vehicle")
	}
	return nil
}

// recomputeWalkDistances re-measures each member's walk distance against
// the stop's post-snap centroid, per spec.md §4.4 step 3.
func recomputeWalkDistances(stop *models.Stop, homeByID map[int64]models.Coordinates) {
	var maxWalk float64
	for i, m := range stop.Members {
		home, ok := homeByID[m.EmployeeID]
		if !ok {
			continue
		}
		d := geo.DistanceMeters(home, stop.Centroid)
		stop.Members[i].WalkDistance = d
		if d > maxWalk {
			maxWalk = d
		}
	}
	stop.MaxWalk = maxWalk
}

func scaleMatrix(m [][]float64, factor float64) [][]float64 {
	scaled := make([][]float64, len(m))
	for i, row := range m {
		scaled[i] = make([]float64, len(row))
		for j, v := range row {
			scaled[i][j] = v * factor
		}
	}
	return scaled
}

func solverTimeBudget(numStops int) float64 {
	switch {
	case numStops <= 20:
		return 30
	case numStops <= 40:
		return 45
	default:
		return 60
	}
}

// buildFleet expands the configured small/large vehicle counts into a
// capacity list (priority vehicles first) and returns the priority count.
func buildFleet(cfg models.PlanConfig) ([]int, int, error) {
	smallCap := cfg.SmallCapacity - cfg.BufferSeats
	largeCap := cfg.LargeCapacity - cfg.BufferSeats
	if smallCap < 0 {
		smallCap = 0
	}
	if largeCap < 0 {
		largeCap = 0
	}

	var capacities []int
	var priorityCount int
	switch cfg.VehiclePriority {
	case models.PriorityLarge:
		for i := 0; i < cfg.NumLarge; i++ {
			capacities = append(capacities, largeCap)
		}
		priorityCount = len(capacities)
		for i := 0; i < cfg.NumSmall; i++ {
			capacities = append(capacities, smallCap)
		}
	case models.PrioritySmall:
		for i := 0; i < cfg.NumSmall; i++ {
			capacities = append(capacities, smallCap)
		}
		priorityCount = len(capacities)
		for i := 0; i < cfg.NumLarge; i++ {
			capacities = append(capacities, largeCap)
		}
	default: // auto: no single class is preferred, every vehicle is priority
		for i := 0; i < cfg.NumLarge; i++ {
			capacities = append(capacities, largeCap)
		}
		for i := 0; i < cfg.NumSmall; i++ {
			capacities = append(capacities, smallCap)
		}
		priorityCount = 0
	}
	if len(capacities) == 0 {
		return nil, 0, planerr.New(planerr.InputInvalid, "fleet must have at least one vehicle")
	}
	return capacities, priorityCount, nil
}

// fleetVehicleTypes mirrors buildFleet's ordering to label each vehicle
// index "small" or "large" for persistence.
func fleetVehicleTypes(cfg models.PlanConfig) []string {
	var types []string
	switch cfg.VehiclePriority {
	case models.PriorityLarge:
		for i := 0; i < cfg.NumLarge; i++ {
			types = append(types, "large")
		}
		for i := 0; i < cfg.NumSmall; i++ {
			types = append(types, "small")
		}
	case models.PrioritySmall:
		for i := 0; i < cfg.NumSmall; i++ {
			types = append(types, "small")
		}
		for i := 0; i < cfg.NumLarge; i++ {
			types = append(types, "large")
		}
	default:
		for i := 0; i < cfg.NumLarge; i++ {
			types = append(types, "large")
		}
		for i := 0; i < cfg.NumSmall; i++ {
			types = append(types, "small")
		}
	}
	return types
}

// escalateFleet enlarges cfg's fleet per spec.md §4.4 step 7 (small
// priority adds +2 small, large priority adds +2 large, auto adds +1 of
// each) and rebuilds the capacity list, keeping ordering consistent with
// fleetVehicleTypes.
func escalateFleet(cfg *models.PlanConfig) ([]int, int) {
	switch cfg.VehiclePriority {
	case models.PrioritySmall:
		cfg.NumSmall += 2
	case models.PriorityLarge:
		cfg.NumLarge += 2
	default:
		cfg.NumSmall++
		cfg.NumLarge++
	}
	capacities, priorityCount, _ := buildFleet(*cfg)
	return capacities, priorityCount
}

// buildRoute produces the geometry-enriched, persistence-shaped Route
// for one solved vehicle sequence, per spec.md §4.4 steps 8-9.
func (o *Orchestrator) buildRoute(ctx context.Context, req Request, stops []models.Stop, v cvrp.VehicleResult,
	vehicleIndex int, vehicleType string, trafficFactor float64) (models.Route, bool, error) {

	sequence := routeCoordinateSequence(req.Depot, stops, v.Nodes, req.Config.RouteType)
	geometry, err := o.Roads.RouteGeometry(ctx, sequence, req.Config.ExcludeTolls)
	if err != nil {
		return models.Route{}, false, err
	}

	polyline := geometry.Polyline
	switch req.Config.RouteType {
	case models.RouteRing, models.RouteToHome:
		if len(polyline) == 0 || !coordsEqual(polyline[0], req.Depot) {
			polyline = append([]models.Coordinates{req.Depot}, polyline...)
		}
	}
	switch req.Config.RouteType {
	case models.RouteRing, models.RouteToDepot:
		if len(polyline) == 0 || !coordsEqual(polyline[len(polyline)-1], req.Depot) {
			polyline = append(polyline, req.Depot)
		}
	}

	capacity := req.Config.SmallCapacity - req.Config.BufferSeats
	if vehicleType == "large" {
		capacity = req.Config.LargeCapacity - req.Config.BufferSeats
	}

	routeStops := buildRouteStops(stops, v.Nodes, geometry.Legs, req.Config.RouteType, trafficFactor)

	passengers := 0
	for _, rs := range routeStops {
		passengers += rs.PassengerCount()
	}

	route := models.Route{
		VehicleIndex: vehicleIndex,
		VehicleType:  vehicleType,
		Capacity:     capacity,
		Passengers:   passengers,
		DistanceM:    geometry.DistanceM,
		DurationSec:  geometry.DurationSec * trafficFactor,
		Polyline:     polyline,
		Stops:        routeStops,
	}
	return route, geometry.Fallback, nil
}

// routeCoordinateSequence builds the ordered coordinate list handed to
// RouteGeometry, depending on route type: ring visits depot-stops-depot,
// to_home omits the trailing depot leg, to_depot omits the leading one.
func routeCoordinateSequence(depot models.Coordinates, stops []models.Stop, nodes []int, routeType models.RouteType) []models.Coordinates {
	var seq []models.Coordinates
	for _, node := range nodes {
		if node == 0 {
			continue
		}
		seq = append(seq, stops[node-1].Centroid)
	}
	switch routeType {
	case models.RouteRing:
		return append(append([]models.Coordinates{depot}, seq...), depot)
	case models.RouteToHome:
		return append([]models.Coordinates{depot}, seq...)
	case models.RouteToDepot:
		return append(seq, depot)
	default:
		return append(append([]models.Coordinates{depot}, seq...), depot)
	}
}

// buildRouteStops computes each stop's distance_to_depot (ring/to_depot)
// or distance_from_depot (to_home) from the enriched leg list.
func buildRouteStops(stops []models.Stop, nodes []int, legs []roadnetwork.Leg, routeType models.RouteType, trafficFactor float64) []models.RouteStop {
	var stopNodes []int
	for _, n := range nodes {
		if n != 0 {
			stopNodes = append(stopNodes, n)
		}
	}

	routeStops := make([]models.RouteStop, len(stopNodes))
	for i, node := range stopNodes {
		s := stops[node-1]
		rs := models.RouteStop{
			Location:  s.Centroid,
			RoadName:  s.RoadName,
			MemberIDs: s.EmployeeIDs(),
		}
		for _, m := range s.Members {
			rs.MemberNames = append(rs.MemberNames, m.Name)
			rs.WalkDistances = append(rs.WalkDistances, m.WalkDistance)
		}
		routeStops[i] = rs
	}

	switch routeType {
	case models.RouteToHome:
		var cumulative float64
		for i := range routeStops {
			if i < len(legs) {
				cumulative += legs[i].DistanceM
			}
			routeStops[i].DistanceFromDepotM = cumulative
		}
	default: // ring and to_depot both report distance_to_depot
		totalLegs := len(legs)
		for i := range routeStops {
			var remaining float64
			startLeg := i + 1
			if routeType == models.RouteToDepot {
				startLeg = i
			}
			for j := startLeg; j < totalLegs; j++ {
				remaining += legs[j].DistanceM
			}
			routeStops[i].DistanceToDepotM = remaining
		}
	}
	return routeStops
}

func coordsEqual(a, b models.Coordinates) bool {
	const epsilon = 1e-6
	return abs(a.Lat-b.Lat) < epsilon && abs(a.Lng-b.Lng) < epsilon
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
