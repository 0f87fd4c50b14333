// Package testutil provides deterministic fake collaborators for the
// planning core's tests, grounded on the teacher's
// internal/testutil.MockDistanceCalculator (scaled-Euclidean stand-in
// for a real routing engine) generalized to the Road-Network Adapter
// and Plan Repository interfaces.
package testutil

import (
	"context"
	"math"
	"sort"

	"shuttleplan/internal/models"
	"shuttleplan/internal/roadnetwork"
	"shuttleplan/internal/store"
)

// scaleFactor approximates meters per degree at the equator, matching
// the teacher's mock distance calculator.
const scaleFactor = 111000.0

func euclideanMeters(a, b models.Coordinates) float64 {
	dLat := b.Lat - a.Lat
	dLng := b.Lng - a.Lng
	return math.Sqrt(dLat*dLat+dLng*dLng) * scaleFactor
}

// FakeRoadAdapter is a deterministic roadnetwork.Adapter backed by
// scaled-Euclidean distance, for use in clustering/orchestrator/editor
// tests that must not depend on a live OSRM instance.
type FakeRoadAdapter struct {
	// AlwaysFallback forces every call to report fallback=true, for
	// exercising the Orchestrator's degraded-plan bookkeeping.
	AlwaysFallback bool
	// SnapOffsets, if set, maps an input coordinate (compared exactly) to
	// the returned snapped coordinate; unset inputs snap to themselves.
	SnapOffsets map[models.Coordinates]models.Coordinates
}

// NewFakeRoadAdapter constructs a FakeRoadAdapter with no snap offsets.
func NewFakeRoadAdapter() *FakeRoadAdapter {
	return &FakeRoadAdapter{SnapOffsets: map[models.Coordinates]models.Coordinates{}}
}

func (f *FakeRoadAdapter) Matrix(ctx context.Context, points []models.Coordinates, excludeTolls bool) (roadnetwork.MatrixResult, error) {
	n := len(points)
	distances := make([][]float64, n)
	durations := make([][]float64, n)
	for i := range points {
		distances[i] = make([]float64, n)
		durations[i] = make([]float64, n)
		for j := range points {
			if i == j {
				continue
			}
			d := euclideanMeters(points[i], points[j])
			distances[i][j] = d
			durations[i][j] = d / 50000 * 3600 // 50 km/h assumed
		}
	}
	return roadnetwork.MatrixResult{DistancesM: distances, DurationsSec: durations, Fallback: f.AlwaysFallback}, nil
}

func (f *FakeRoadAdapter) RouteGeometry(ctx context.Context, points []models.Coordinates, excludeTolls bool) (roadnetwork.RouteResult, error) {
	var legs []roadnetwork.Leg
	var totalDist, totalDur float64
	for i := 0; i+1 < len(points); i++ {
		d := euclideanMeters(points[i], points[i+1])
		dur := d / 50000 * 3600
		legs = append(legs, roadnetwork.Leg{DistanceM: d, DurationSec: dur})
		totalDist += d
		totalDur += dur
	}
	return roadnetwork.RouteResult{
		Polyline:    points,
		DistanceM:   totalDist,
		DurationSec: totalDur,
		Legs:        legs,
		Fallback:    f.AlwaysFallback,
	}, nil
}

func (f *FakeRoadAdapter) SnapToRoad(ctx context.Context, point models.Coordinates, maxDistanceM float64) (roadnetwork.SnapResult, error) {
	snapped := point
	if s, ok := f.SnapOffsets[point]; ok {
		snapped = s
	}
	return roadnetwork.SnapResult{
		Original:     point,
		Snapped:      snapped,
		WalkDistance: euclideanMeters(point, snapped),
		RoadName:     "Test Avenue",
		Valid:        true,
		Fallback:     f.AlwaysFallback,
	}, nil
}

func (f *FakeRoadAdapter) SnapBatch(ctx context.Context, points []models.Coordinates, maxDistanceM float64) ([]roadnetwork.SnapResult, error) {
	results := make([]roadnetwork.SnapResult, len(points))
	for i, p := range points {
		r, err := f.SnapToRoad(ctx, p, maxDistanceM)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

func (f *FakeRoadAdapter) Health(ctx context.Context) bool { return !f.AlwaysFallback }

var _ roadnetwork.Adapter = (*FakeRoadAdapter)(nil)

// FakeShiftRepository is an in-memory store.ShiftRepository, kept as a
// distinct type from FakePlanRepository because EmployeeRepository and
// ShiftRepository both declare a GetByID method with a different
// return type — one concrete type cannot implement both.
type FakeShiftRepository struct {
	Shifts []models.Shift
}

func (f *FakeShiftRepository) GetByID(ctx context.Context, id int64) (*models.Shift, error) {
	for _, s := range f.Shifts {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

var _ store.ShiftRepository = (*FakeShiftRepository)(nil)

// FakePlanRepository is an in-memory store.PlanRepository that also
// implements store.EmployeeRepository, so a single fake can back an
// orchestrator test's employee reads and plan writes together.
type FakePlanRepository struct {
	Employees []models.Employee
	Fleet     store.FleetStatus

	nextPlanID  int64
	nextRouteID int64
	plans       map[int64]*models.Plan
	routes      map[int64][]models.Route
}

// NewFakePlanRepository constructs an empty in-memory repository.
func NewFakePlanRepository() *FakePlanRepository {
	return &FakePlanRepository{
		plans:  make(map[int64]*models.Plan),
		routes: make(map[int64][]models.Route),
	}
}

func (f *FakePlanRepository) List(ctx context.Context, shiftID *int64) ([]models.Employee, error) {
	if shiftID == nil {
		return append([]models.Employee{}, f.Employees...), nil
	}
	var filtered []models.Employee
	for _, e := range f.Employees {
		if e.ShiftID != nil && *e.ShiftID == *shiftID {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func (f *FakePlanRepository) GetByID(ctx context.Context, id int64) (*models.Employee, error) {
	for _, e := range f.Employees {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *FakePlanRepository) CreatePlan(ctx context.Context, plan *models.Plan, routes []models.Route) (*models.Plan, error) {
	f.nextPlanID++
	plan.ID = f.nextPlanID
	stored := make([]models.Route, len(routes))
	for i, r := range routes {
		f.nextRouteID++
		r.ID = f.nextRouteID
		r.PlanID = plan.ID
		stored[i] = r
	}
	f.plans[plan.ID] = plan
	f.routes[plan.ID] = stored
	return plan, nil
}

func (f *FakePlanRepository) GetPlan(ctx context.Context, id int64) (*models.Plan, []models.Route, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	return p, append([]models.Route{}, f.routes[id]...), nil
}

func (f *FakePlanRepository) DeletePlan(ctx context.Context, id int64) error {
	if _, ok := f.plans[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.plans, id)
	delete(f.routes, id)
	return nil
}

// CommitRouteUpdate mirrors the production transaction: write the route,
// then recompute the plan's totals from the sum over its routes.
func (f *FakePlanRepository) CommitRouteUpdate(ctx context.Context, planID int64, route models.Route) (*models.Plan, error) {
	p, ok := f.plans[planID]
	if !ok {
		return nil, store.ErrNotFound
	}
	rows := f.routes[planID]
	found := false
	for i, r := range rows {
		if r.ID == route.ID {
			rows[i] = route
			found = true
			break
		}
	}
	if !found {
		return nil, store.ErrNotFound
	}
	f.routes[planID] = rows

	p.TotalVehicles, p.TotalDistanceM, p.TotalDurationSec, p.TotalPassengers = 0, 0, 0, 0
	for _, r := range rows {
		if r.Passengers == 0 {
			continue
		}
		p.TotalVehicles++
		p.TotalDistanceM += r.DistanceM
		p.TotalDurationSec += r.DurationSec
		p.TotalPassengers += r.Passengers
	}
	return p, nil
}

func (f *FakePlanRepository) FleetStatus(ctx context.Context) (store.FleetStatus, error) {
	return f.Fleet, nil
}

var (
	_ store.EmployeeRepository = (*FakePlanRepository)(nil)
	_ store.PlanRepository     = (*FakePlanRepository)(nil)
)

// SortRoutesByVehicleIndex is a small test helper that orders routes by
// ascending VehicleIndex.
func SortRoutesByVehicleIndex(routes []models.Route) {
	sort.Slice(routes, func(i, j int) bool { return routes[i].VehicleIndex < routes[j].VehicleIndex })
}
