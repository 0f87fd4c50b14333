package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttleplan/internal/clustering"
	"shuttleplan/internal/cvrp"
	"shuttleplan/internal/models"
	"shuttleplan/internal/planerr"
	"shuttleplan/internal/testutil"
)

// fourClusters builds 40 employees in 4 obvious geographic clusters of
// 10, matching scenario S2.
func fourClusters() []models.Employee {
	centers := []models.Coordinates{
		{Lat: 41.000, Lng: 29.000},
		{Lat: 41.020, Lng: 29.000},
		{Lat: 41.000, Lng: 29.020},
		{Lat: 41.020, Lng: 29.020},
	}
	var employees []models.Employee
	id := int64(1)
	for _, c := range centers {
		for j := 0; j < 10; j++ {
			offset := float64(j) * 0.0003
			employees = append(employees, models.Employee{
				ID:   id,
				Name: "employee",
				Home: models.Coordinates{Lat: c.Lat + offset, Lng: c.Lng + offset},
			})
			id++
		}
	}
	return employees
}

func baseConfig() models.PlanConfig {
	return models.PlanConfig{
		WalkingCapM:      150,
		NumSmall:         3,
		NumLarge:         1,
		SmallCapacity:    16,
		LargeCapacity:    27,
		BufferSeats:      0,
		MaxTravelTimeMin: 65,
		VehiclePriority:  models.PriorityAuto,
		TrafficMode:      models.TrafficNone,
		RouteType:        models.RouteRing,
	}
}

func newOrchestrator(employees []models.Employee) (*Orchestrator, *testutil.FakePlanRepository) {
	repo := testutil.NewFakePlanRepository()
	repo.Employees = employees
	shifts := &testutil.FakeShiftRepository{}
	roads := testutil.NewFakeRoadAdapter()
	o := New(repo, shifts, repo, roads, clustering.New(clustering.MethodDensity), cvrp.NewHeuristicSolver(nil), nil)
	return o, repo
}

func TestCreatePlan_S2_FourClustersNoCapacityViolation(t *testing.T) {
	o, _ := newOrchestrator(fourClusters())
	req := Request{
		Name:   "S2",
		Depot:  models.Coordinates{Lat: 41.010, Lng: 29.010},
		Config: baseConfig(),
	}

	plan, routes, err := o.CreatePlan(context.Background(), req)
	require.NoError(t, err)

	assert.LessOrEqual(t, plan.TotalVehicles, 2)

	totalPassengers := 0
	for _, r := range routes {
		assert.LessOrEqual(t, r.Passengers, r.Capacity)
		totalPassengers += r.Passengers
	}
	assert.Equal(t, 40, totalPassengers)
}

func TestCreatePlan_S4_InfeasibleAfterFleetEscalationExhausted(t *testing.T) {
	o, _ := newOrchestrator(fourClusters())
	cfg := baseConfig()
	cfg.MaxTravelTimeMin = 15
	cfg.NumSmall = 1
	cfg.NumLarge = 0
	// Every stop holds 10 employees; capping every vehicle class at 1
	// seat means no amount of fleet-escalation retry can ever fit a
	// stop, so the orchestrator must exhaust its 5 retries and fail.
	cfg.SmallCapacity = 1
	cfg.LargeCapacity = 1
	req := Request{
		Name:   "S4",
		Depot:  models.Coordinates{Lat: 41.010, Lng: 29.010},
		Config: cfg,
	}

	_, _, err := o.CreatePlan(context.Background(), req)
	require.Error(t, err)
	assert.True(t, planerr.Is(err, planerr.NoSolution))
}

func TestCreatePlan_EmptyEmployeeSetIsInputInvalid(t *testing.T) {
	o, _ := newOrchestrator(nil)
	req := Request{
		Name:   "empty",
		Depot:  models.Coordinates{Lat: 41.0, Lng: 29.0},
		Config: baseConfig(),
	}

	_, _, err := o.CreatePlan(context.Background(), req)
	require.Error(t, err)
	assert.True(t, planerr.Is(err, planerr.InputInvalid))
}

func TestCreatePlan_AggregatesMatchRouteSums(t *testing.T) {
	o, _ := newOrchestrator(fourClusters())
	req := Request{
		Name:   "aggregates",
		Depot:  models.Coordinates{Lat: 41.010, Lng: 29.010},
		Config: baseConfig(),
	}

	plan, routes, err := o.CreatePlan(context.Background(), req)
	require.NoError(t, err)

	var distance, duration float64
	var passengers int
	for _, r := range routes {
		distance += r.DistanceM
		duration += r.DurationSec
		passengers += r.Passengers
	}
	assert.InDelta(t, distance, plan.TotalDistanceM, 1)
	assert.InDelta(t, duration, plan.TotalDurationSec, 1)
	assert.Equal(t, passengers, plan.TotalPassengers)
}

func TestCreatePlan_RingRoutesStartAndEndAtDepot(t *testing.T) {
	o, _ := newOrchestrator(fourClusters())
	req := Request{
		Name:   "ring",
		Depot:  models.Coordinates{Lat: 41.010, Lng: 29.010},
		Config: baseConfig(),
	}

	_, routes, err := o.CreatePlan(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, routes)

	for _, r := range routes {
		require.NotEmpty(t, r.Polyline)
		assert.Equal(t, req.Depot, r.Polyline[0])
		assert.Equal(t, req.Depot, r.Polyline[len(r.Polyline)-1])
	}
}

func TestCreatePlan_ToHomeRoutesEndAwayFromDepot(t *testing.T) {
	o, _ := newOrchestrator(fourClusters())
	cfg := baseConfig()
	cfg.RouteType = models.RouteToHome
	req := Request{
		Name:   "to-home",
		Depot:  models.Coordinates{Lat: 41.010, Lng: 29.010},
		Config: cfg,
	}

	_, routes, err := o.CreatePlan(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, routes)

	for _, r := range routes {
		require.NotEmpty(t, r.Polyline)
		assert.Equal(t, req.Depot, r.Polyline[0])
		assert.NotEqual(t, req.Depot, r.Polyline[len(r.Polyline)-1])
	}
}
