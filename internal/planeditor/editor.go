// Package planeditor implements the four incremental edit operations
// from spec.md §4.5 (Move Stop, Reorder, Add Employee, Remove Employee),
// each in a preview form (compute a diff, write nothing) and a commit
// form (write the route and recompute the plan's totals in one
// transaction). It depends only on the Road-Network Adapter and the
// Plan Repository, the same two collaborators the Orchestrator uses for
// its own route geometry — the two packages never call each other.
package planeditor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shuttleplan/internal/config"
	"shuttleplan/internal/geo"
	"shuttleplan/internal/models"
	"shuttleplan/internal/planerr"
	"shuttleplan/internal/roadnetwork"
	"shuttleplan/internal/store"
)

// addEmployeeStopRadiusM is the distance within which a new employee is
// folded into an existing stop rather than getting an individual one.
const addEmployeeStopRadiusM = 400.0

// Editor applies incremental edits to a persisted plan's routes.
type Editor struct {
	Plans     store.PlanRepository
	Employees store.EmployeeRepository
	Roads     roadnetwork.Adapter
	log       *zap.Logger
}

// New constructs an Editor from its collaborators.
func New(plans store.PlanRepository, employees store.EmployeeRepository, roads roadnetwork.Adapter, log *zap.Logger) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{Plans: plans, Employees: employees, Roads: roads, log: log}
}

// Diff reports how an edit changes a route's distance and duration, per
// spec.md §4.5's preview contract.
type Diff struct {
	OldDistanceM        float64
	NewDistanceM        float64
	DiffDistanceM       float64
	DiffDistancePercent float64
	OldDurationSec      float64
	NewDurationSec      float64
	DiffDurationSec     float64
	DiffDurationPercent float64
}

func diffOf(before, after models.Route) Diff {
	return Diff{
		OldDistanceM:        before.DistanceM,
		NewDistanceM:        after.DistanceM,
		DiffDistanceM:       after.DistanceM - before.DistanceM,
		DiffDistancePercent: percentChange(before.DistanceM, after.DistanceM),
		OldDurationSec:      before.DurationSec,
		NewDurationSec:      after.DurationSec,
		DiffDurationSec:     after.DurationSec - before.DurationSec,
		DiffDurationPercent: percentChange(before.DurationSec, after.DurationSec),
	}
}

func percentChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before * 100
}

func cloneRoute(r models.Route) models.Route {
	clone := r
	clone.Polyline = append([]models.Coordinates{}, r.Polyline...)
	clone.Stops = make([]models.RouteStop, len(r.Stops))
	for i, s := range r.Stops {
		clone.Stops[i] = models.RouteStop{
			Location:           s.Location,
			RoadName:           s.RoadName,
			MemberIDs:          append([]int64{}, s.MemberIDs...),
			MemberNames:        append([]string{}, s.MemberNames...),
			WalkDistances:      append([]float64{}, s.WalkDistances...),
			DistanceToDepotM:   s.DistanceToDepotM,
			DistanceFromDepotM: s.DistanceFromDepotM,
		}
	}
	return clone
}

// loadRoute fetches the plan and the one route being edited.
func (e *Editor) loadRoute(ctx context.Context, planID, routeID int64) (*models.Plan, models.Route, error) {
	plan, routes, err := e.Plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, models.Route{}, planerr.Wrap(planerr.PersistenceFailure, "failed to load plan", err)
	}
	for _, r := range routes {
		if r.ID == routeID {
			return plan, cloneRoute(r), nil
		}
	}
	return nil, models.Route{}, planerr.New(planerr.EditorConflict, fmt.Sprintf("route %d not found on plan %d", routeID, planID))
}

// commit persists the edited route and recomputes the plan's totals.
func (e *Editor) commit(ctx context.Context, planID int64, route models.Route) (*models.Plan, error) {
	plan, err := e.Plans.CommitRouteUpdate(ctx, planID, route)
	if err != nil {
		return nil, planerr.Wrap(planerr.PersistenceFailure, "failed to commit route edit", err)
	}
	e.log.Info("route edit committed",
		zap.Int64("plan_id", planID), zap.Int64("route_id", route.ID),
		zap.Float64("distance_m", route.DistanceM), zap.Float64("duration_sec", route.DurationSec))
	return plan, nil
}

// recomputeRoute rebuilds a route's coordinate sequence, geometry and
// per-stop depot distances, mirroring the Orchestrator's step 8-9
// enrichment (spec.md §4.4) but operating on a persisted Route's
// already-denormalized stops instead of fresh clustering output.
func (e *Editor) recomputeRoute(ctx context.Context, depot models.Coordinates, cfg models.PlanConfig, route models.Route) (models.Route, error) {
	if len(route.Stops) == 0 {
		route.DistanceM = 0
		route.DurationSec = 0
		route.Polyline = nil
		route.Passengers = 0
		return route, nil
	}

	sequence := coordinateSequence(depot, route.Stops, cfg.RouteType)
	geometry, err := e.Roads.RouteGeometry(ctx, sequence, cfg.ExcludeTolls)
	if err != nil {
		return models.Route{}, planerr.Wrap(planerr.RoutingEngineUnavailable, "failed to rebuild route geometry", err)
	}

	polyline := geometry.Polyline
	switch cfg.RouteType {
	case models.RouteRing, models.RouteToHome:
		if len(polyline) == 0 || !coordsEqual(polyline[0], depot) {
			polyline = append([]models.Coordinates{depot}, polyline...)
		}
	}
	switch cfg.RouteType {
	case models.RouteRing, models.RouteToDepot:
		if len(polyline) == 0 || !coordsEqual(polyline[len(polyline)-1], depot) {
			polyline = append(polyline, depot)
		}
	}

	applyLegDistances(route.Stops, geometry.Legs, cfg.RouteType)

	trafficFactor := config.TrafficFactor(cfg.TrafficMode)
	passengers := 0
	for _, s := range route.Stops {
		passengers += s.PassengerCount()
	}

	route.Polyline = polyline
	route.DistanceM = geometry.DistanceM
	route.DurationSec = geometry.DurationSec * trafficFactor
	route.Passengers = passengers
	return route, nil
}

// coordinateSequence builds the ordered coordinate list for a route's
// current stops, depending on route type, matching the policy the
// Orchestrator applies when first producing the route.
func coordinateSequence(depot models.Coordinates, stops []models.RouteStop, routeType models.RouteType) []models.Coordinates {
	seq := make([]models.Coordinates, len(stops))
	for i, s := range stops {
		seq[i] = s.Location
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

// applyLegDistances recomputes each stop's distance_to_depot (ring,
// to_depot) or distance_from_depot (to_home) from the rebuilt leg list.
func applyLegDistances(stops []models.RouteStop, legs []roadnetwork.Leg, routeType models.RouteType) {
	switch routeType {
	case models.RouteToHome:
		var cumulative float64
		for i := range stops {
			if i < len(legs) {
				cumulative += legs[i].DistanceM
			}
			stops[i].DistanceFromDepotM = cumulative
		}
	default:
		totalLegs := len(legs)
		for i := range stops {
			var remaining float64
			startLeg := i + 1
			if routeType == models.RouteToDepot {
				startLeg = i
			}
			for j := startLeg; j < totalLegs; j++ {
				remaining += legs[j].DistanceM
			}
			stops[i].DistanceToDepotM = remaining
		}
	}
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

// ---- Move Stop ----

func (e *Editor) moveStop(ctx context.Context, plan *models.Plan, route models.Route, stopIndex int, newLocation models.Coordinates) (models.Route, error) {
	if stopIndex < 0 || stopIndex >= len(route.Stops) {
		return models.Route{}, planerr.New(planerr.InputInvalid, "stop index out of range")
	}
	if !newLocation.Valid() {
		return models.Route{}, planerr.New(planerr.InputInvalid, "new stop location is invalid")
	}

	stop := &route.Stops[stopIndex]
	stop.Location = newLocation
	if err := e.recomputeMemberWalkDistances(ctx, stop); err != nil {
		return models.Route{}, err
	}
	return e.recomputeRoute(ctx, plan.Depot, plan.Config, route)
}

// MoveStopPreview computes the diff of relocating one stop without
// writing anything.
func (e *Editor) MoveStopPreview(ctx context.Context, planID, routeID int64, stopIndex int, newLocation models.Coordinates) (Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	updated, err := e.moveStop(ctx, plan, route, stopIndex, newLocation)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	return diffOf(route, updated), updated, nil
}

// MoveStopCommit relocates a stop and persists the result.
func (e *Editor) MoveStopCommit(ctx context.Context, planID, routeID int64, stopIndex int, newLocation models.Coordinates) (*models.Plan, Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	updated, err := e.moveStop(ctx, plan, route, stopIndex, newLocation)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	newPlan, err := e.commit(ctx, planID, updated)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	return newPlan, diffOf(route, updated), updated, nil
}

func (e *Editor) recomputeMemberWalkDistances(ctx context.Context, stop *models.RouteStop) error {
	for i, id := range stop.MemberIDs {
		employee, err := e.Employees.GetByID(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				continue // employee removed out-of-band; keep the stale distance
			}
			return planerr.Wrap(planerr.PersistenceFailure, "failed to load employee", err)
		}
		stop.WalkDistances[i] = geo.DistanceMeters(employee.Home, stop.Location)
	}
	return nil
}

// ---- Reorder ----

func (e *Editor) reorder(ctx context.Context, plan *models.Plan, route models.Route, index int) (models.Route, error) {
	n := len(route.Stops)
	if n == 0 {
		return models.Route{}, planerr.New(planerr.InputInvalid, "route has no stops to reorder")
	}
	if index < 0 || index >= n {
		return models.Route{}, planerr.New(planerr.InputInvalid, "reorder index out of range")
	}
	rotated := make([]models.RouteStop, 0, n)
	rotated = append(rotated, route.Stops[index:]...)
	rotated = append(rotated, route.Stops[:index]...)
	route.Stops = rotated
	return e.recomputeRoute(ctx, plan.Depot, plan.Config, route)
}

// ReorderPreview computes the diff of rotating the stop sequence so
// that stops[index] becomes the first pickup.
func (e *Editor) ReorderPreview(ctx context.Context, planID, routeID int64, index int) (Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	updated, err := e.reorder(ctx, plan, route, index)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	return diffOf(route, updated), updated, nil
}

// ReorderCommit rotates the stop sequence and persists the result.
func (e *Editor) ReorderCommit(ctx context.Context, planID, routeID int64, index int) (*models.Plan, Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	updated, err := e.reorder(ctx, plan, route, index)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	newPlan, err := e.commit(ctx, planID, updated)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	return newPlan, diffOf(route, updated), updated, nil
}

// ---- Add Employee ----

func (e *Editor) addEmployee(ctx context.Context, plan *models.Plan, route models.Route, employeeID int64) (models.Route, error) {
	employee, err := e.Employees.GetByID(ctx, employeeID)
	if err != nil {
		if err == store.ErrNotFound {
			return models.Route{}, planerr.New(planerr.InputInvalid, fmt.Sprintf("employee %d does not exist", employeeID))
		}
		return models.Route{}, planerr.Wrap(planerr.PersistenceFailure, "failed to load employee", err)
	}
	if !employee.Home.Valid() {
		return models.Route{}, planerr.New(planerr.InputInvalid, fmt.Sprintf("employee %d has an invalid home location", employeeID))
	}

	for _, s := range route.Stops {
		for _, id := range s.MemberIDs {
			if id == employeeID {
				return models.Route{}, planerr.New(planerr.EditorConflict, fmt.Sprintf("employee %d is already on this route", employeeID))
			}
		}
	}
	if route.Passengers >= route.Capacity {
		return models.Route{}, planerr.New(planerr.EditorConflict, "route is at capacity")
	}

	nearestIndex := -1
	nearestDist := addEmployeeStopRadiusM
	for i, s := range route.Stops {
		d := geo.DistanceMeters(employee.Home, s.Location)
		if d <= nearestDist {
			nearestDist = d
			nearestIndex = i
		}
	}

	if nearestIndex >= 0 {
		stop := &route.Stops[nearestIndex]
		stop.MemberIDs = append(stop.MemberIDs, employee.ID)
		stop.MemberNames = append(stop.MemberNames, employee.Name)
		stop.WalkDistances = append(stop.WalkDistances, geo.DistanceMeters(employee.Home, stop.Location))
	} else {
		route.Stops = append(route.Stops, models.RouteStop{
			Location:      employee.Home,
			MemberIDs:     []int64{employee.ID},
			MemberNames:   []string{employee.Name},
			WalkDistances: []float64{0},
		})
	}

	return e.recomputeRoute(ctx, plan.Depot, plan.Config, route)
}

// AddEmployeePreview computes the diff of adding an employee to a route.
func (e *Editor) AddEmployeePreview(ctx context.Context, planID, routeID, employeeID int64) (Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	updated, err := e.addEmployee(ctx, plan, route, employeeID)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	return diffOf(route, updated), updated, nil
}

// AddEmployeeCommit adds an employee to a route and persists the result.
func (e *Editor) AddEmployeeCommit(ctx context.Context, planID, routeID, employeeID int64) (*models.Plan, Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	updated, err := e.addEmployee(ctx, plan, route, employeeID)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	newPlan, err := e.commit(ctx, planID, updated)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	return newPlan, diffOf(route, updated), updated, nil
}

// ---- Remove Employee ----

func (e *Editor) removeEmployee(ctx context.Context, plan *models.Plan, route models.Route, employeeID int64) (models.Route, error) {
	stopIndex, memberIndex := -1, -1
	for si, s := range route.Stops {
		for mi, id := range s.MemberIDs {
			if id == employeeID {
				stopIndex, memberIndex = si, mi
				break
			}
		}
		if stopIndex >= 0 {
			break
		}
	}
	if stopIndex < 0 {
		return models.Route{}, planerr.New(planerr.EditorConflict, fmt.Sprintf("employee %d is not on this route", employeeID))
	}

	stop := route.Stops[stopIndex]
	stop.MemberIDs = append(stop.MemberIDs[:memberIndex], stop.MemberIDs[memberIndex+1:]...)
	stop.MemberNames = append(stop.MemberNames[:memberIndex], stop.MemberNames[memberIndex+1:]...)
	stop.WalkDistances = append(stop.WalkDistances[:memberIndex], stop.WalkDistances[memberIndex+1:]...)

	if len(stop.MemberIDs) == 0 {
		route.Stops = append(route.Stops[:stopIndex], route.Stops[stopIndex+1:]...)
	} else {
		route.Stops[stopIndex] = stop
	}

	return e.recomputeRoute(ctx, plan.Depot, plan.Config, route)
}

// RemoveEmployeePreview computes the diff of dropping an employee.
func (e *Editor) RemoveEmployeePreview(ctx context.Context, planID, routeID, employeeID int64) (Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	updated, err := e.removeEmployee(ctx, plan, route, employeeID)
	if err != nil {
		return Diff{}, models.Route{}, err
	}
	return diffOf(route, updated), updated, nil
}

// RemoveEmployeeCommit drops an employee from a route and persists the
// result. If the route ends up with no stops, distance, duration and
// polyline are zeroed per spec.md §4.5's Remove Employee operation.
func (e *Editor) RemoveEmployeeCommit(ctx context.Context, planID, routeID, employeeID int64) (*models.Plan, Diff, models.Route, error) {
	plan, route, err := e.loadRoute(ctx, planID, routeID)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	updated, err := e.removeEmployee(ctx, plan, route, employeeID)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	newPlan, err := e.commit(ctx, planID, updated)
	if err != nil {
		return nil, Diff{}, models.Route{}, err
	}
	return newPlan, diffOf(route, updated), updated, nil
}
