package planeditor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttleplan/internal/models"
	"shuttleplan/internal/testutil"
)

func baseConfig() models.PlanConfig {
	return models.PlanConfig{
		WalkingCapM:      150,
		NumSmall:         1,
		NumLarge:         0,
		SmallCapacity:    4,
		LargeCapacity:    0,
		MaxTravelTimeMin: 60,
		VehiclePriority:  models.PriorityAuto,
		TrafficMode:      models.TrafficNone,
		RouteType:        models.RouteRing,
	}
}

// seedTwoStopRoute builds a plan with a single ring route carrying two
// one-employee stops, using the fake road adapter for initial geometry
// the same way the orchestrator would.
func seedTwoStopRoute(t *testing.T, repo *testutil.FakePlanRepository, roads *testutil.FakeRoadAdapter, cfg models.PlanConfig) (*models.Plan, models.Route, models.Coordinates) {
	t.Helper()
	depot := models.Coordinates{Lat: 41.000, Lng: 29.000}
	homeA := models.Coordinates{Lat: 41.001, Lng: 29.000}
	homeB := models.Coordinates{Lat: 41.002, Lng: 29.000}

	repo.Employees = []models.Employee{
		{ID: 1, Name: "Alice", Home: homeA},
		{ID: 2, Name: "Bob", Home: homeB},
	}

	sequence := []models.Coordinates{depot, homeA, homeB, depot}
	geometry, err := roads.RouteGeometry(context.Background(), sequence, false)
	require.NoError(t, err)

	route := models.Route{
		VehicleIndex: 0,
		VehicleType:  "small",
		Capacity:     cfg.SmallCapacity,
		Passengers:   2,
		DistanceM:    geometry.DistanceM,
		DurationSec:  geometry.DurationSec,
		Polyline:     geometry.Polyline,
		Stops: []models.RouteStop{
			{Location: homeA, MemberIDs: []int64{1}, MemberNames: []string{"Alice"}, WalkDistances: []float64{0}, DistanceToDepotM: geometry.Legs[1].DistanceM + geometry.Legs[2].DistanceM},
			{Location: homeB, MemberIDs: []int64{2}, MemberNames: []string{"Bob"}, WalkDistances: []float64{0}, DistanceToDepotM: geometry.Legs[2].DistanceM},
		},
	}

	plan := &models.Plan{
		Name:             "editor-test",
		Depot:            depot,
		Config:           cfg,
		TotalVehicles:    1,
		TotalDistanceM:   route.DistanceM,
		TotalDurationSec: route.DurationSec,
		TotalPassengers:  2,
	}
	persisted, err := repo.CreatePlan(context.Background(), plan, []models.Route{route})
	require.NoError(t, err)

	_, routes, err := repo.GetPlan(context.Background(), persisted.ID)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	return persisted, routes[0], depot
}

func newEditor(repo *testutil.FakePlanRepository, roads *testutil.FakeRoadAdapter) *Editor {
	return New(repo, repo, roads, nil)
}

func TestMoveStop_S5_ShiftsStopAndRefreshesRoute(t *testing.T) {
	repo := testutil.NewFakePlanRepository()
	roads := testutil.NewFakeRoadAdapter()
	plan, route, _ := seedTwoStopRoute(t, repo, roads, baseConfig())
	editor := newEditor(repo, roads)
	ctx := context.Background()

	// Shift stop A roughly 300m north.
	newLocation := models.Coordinates{Lat: 41.001 + 300.0/111000.0, Lng: 29.000}

	newPlan, diff, updated, err := editor.MoveStopCommit(ctx, plan.ID, route.ID, 0, newLocation)
	require.NoError(t, err)

	assert.NotEqual(t, 0.0, diff.DiffDistanceM)
	assert.NotEqual(t, route.DistanceM, updated.DistanceM)
	assert.NotEqual(t, route.DurationSec, updated.DurationSec)
	assert.Equal(t, newLocation, updated.Stops[0].Location)

	// Membership is unchanged: same two employees, same order.
	assert.Equal(t, []int64{1}, updated.Stops[0].MemberIDs)
	assert.Equal(t, []int64{2}, updated.Stops[1].MemberIDs)

	// Plan totals reflect the sum over the (single) route.
	assert.InDelta(t, updated.DistanceM, newPlan.TotalDistanceM, 1)
	assert.InDelta(t, updated.DurationSec, newPlan.TotalDurationSec, 1)
	assert.Equal(t, 2, newPlan.TotalPassengers)

	require.NotEmpty(t, updated.Polyline)
	assert.Equal(t, newLocation, updated.Polyline[1])
}

func TestMoveStop_IdempotentPreview(t *testing.T) {
	repo := testutil.NewFakePlanRepository()
	roads := testutil.NewFakeRoadAdapter()
	plan, route, _ := seedTwoStopRoute(t, repo, roads, baseConfig())
	editor := newEditor(repo, roads)
	ctx := context.Background()

	newLocation := models.Coordinates{Lat: 41.0015, Lng: 29.0005}

	diff1, route1, err := editor.MoveStopPreview(ctx, plan.ID, route.ID, 0, newLocation)
	require.NoError(t, err)
	diff2, route2, err := editor.MoveStopPreview(ctx, plan.ID, route.ID, 0, newLocation)
	require.NoError(t, err)

	assert.Equal(t, diff1, diff2)
	assert.Equal(t, route1.DistanceM, route2.DistanceM)
	assert.Equal(t, route1.DurationSec, route2.DurationSec)

	// A matching commit produces aggregates equal to the preview's new_*.
	newPlan, commitDiff, _, err := editor.MoveStopCommit(ctx, plan.ID, route.ID, 0, newLocation)
	require.NoError(t, err)
	assert.InDelta(t, diff1.NewDistanceM, commitDiff.NewDistanceM, 1e-6)
	assert.InDelta(t, diff1.NewDistanceM, newPlan.TotalDistanceM, 1)
	assert.InDelta(t, diff1.NewDurationSec, newPlan.TotalDurationSec, 1)
}

func TestRemoveEmployee_S6_LastMemberEmptiesStopAndZeroesRoute(t *testing.T) {
	repo := testutil.NewFakePlanRepository()
	roads := testutil.NewFakeRoadAdapter()
	cfg := baseConfig()

	depot := models.Coordinates{Lat: 41.000, Lng: 29.000}
	home := models.Coordinates{Lat: 41.001, Lng: 29.000}
	repo.Employees = []models.Employee{{ID: 1, Name: "Alice", Home: home}}

	sequence := []models.Coordinates{depot, home, depot}
	geometry, err := roads.RouteGeometry(context.Background(), sequence, false)
	require.NoError(t, err)

	route := models.Route{
		VehicleIndex: 0,
		VehicleType:  "small",
		Capacity:     cfg.SmallCapacity,
		Passengers:   1,
		DistanceM:    geometry.DistanceM,
		DurationSec:  geometry.DurationSec,
		Polyline:     geometry.Polyline,
		Stops: []models.RouteStop{
			{Location: home, MemberIDs: []int64{1}, MemberNames: []string{"Alice"}, WalkDistances: []float64{0}, DistanceToDepotM: geometry.Legs[1].DistanceM},
		},
	}
	plan := &models.Plan{
		Name: "remove-test", Depot: depot, Config: cfg,
		TotalVehicles: 1, TotalDistanceM: route.DistanceM, TotalDurationSec: route.DurationSec, TotalPassengers: 1,
	}
	persisted, err := repo.CreatePlan(context.Background(), plan, []models.Route{route})
	require.NoError(t, err)
	_, routes, err := repo.GetPlan(context.Background(), persisted.ID)
	require.NoError(t, err)

	editor := newEditor(repo, roads)
	newPlan, diff, updated, err := editor.RemoveEmployeeCommit(context.Background(), persisted.ID, routes[0].ID, 1)
	require.NoError(t, err)

	assert.Empty(t, updated.Stops)
	assert.Equal(t, 0.0, updated.DistanceM)
	assert.Equal(t, 0.0, updated.DurationSec)
	assert.Empty(t, updated.Polyline)
	assert.Equal(t, 0, updated.Passengers)
	assert.Equal(t, route.DistanceM, diff.OldDistanceM)
	assert.Equal(t, 0, newPlan.TotalPassengers)
	assert.Equal(t, 0.0, newPlan.TotalDistanceM)
}

func TestAddEmployee_RejectsDuplicateMembership(t *testing.T) {
	repo := testutil.NewFakePlanRepository()
	roads := testutil.NewFakeRoadAdapter()
	plan, route, _ := seedTwoStopRoute(t, repo, roads, baseConfig())
	editor := newEditor(repo, roads)

	_, _, err := editor.AddEmployeePreview(context.Background(), plan.ID, route.ID, 1)
	require.Error(t, err)
}

func TestAddEmployee_RejectsAtCapacity(t *testing.T) {
	repo := testutil.NewFakePlanRepository()
	roads := testutil.NewFakeRoadAdapter()
	cfg := baseConfig()
	cfg.SmallCapacity = 2 // route is already full with 2 passengers
	plan, route, _ := seedTwoStopRoute(t, repo, roads, cfg)
	repo.Employees = append(repo.Employees, models.Employee{ID: 3, Name: "Cara", Home: models.Coordinates{Lat: 41.003, Lng: 29.000}})
	editor := newEditor(repo, roads)

	_, _, err := editor.AddEmployeePreview(context.Background(), plan.ID, route.ID, 3)
	require.Error(t, err)
}

func TestAddEmployee_CreatesIndividualStopWhenFarFromExisting(t *testing.T) {
	repo := testutil.NewFakePlanRepository()
	roads := testutil.NewFakeRoadAdapter()
	cfg := baseConfig()
	cfg.SmallCapacity = 4
	plan, route, _ := seedTwoStopRoute(t, repo, roads, cfg)
	far := models.Coordinates{Lat: 41.050, Lng: 29.050}
	repo.Employees = append(repo.Employees, models.Employee{ID: 3, Name: "Cara", Home: far})
	editor := newEditor(repo, roads)

	_, updated, err := editor.AddEmployeePreview(context.Background(), plan.ID, route.ID, 3)
	require.NoError(t, err)
	require.Len(t, updated.Stops, 3)
	assert.Equal(t, []int64{3}, updated.Stops[2].MemberIDs)
	assert.Equal(t, far, updated.Stops[2].Location)
}

func TestReorder_RotatesStopsAndRecomputesGeometry(t *testing.T) {
	repo := testutil.NewFakePlanRepository()
	roads := testutil.NewFakeRoadAdapter()
	plan, route, _ := seedTwoStopRoute(t, repo, roads, baseConfig())
	editor := newEditor(repo, roads)

	_, updated, err := editor.ReorderPreview(context.Background(), plan.ID, route.ID, 1)
	require.NoError(t, err)
	require.Len(t, updated.Stops, 2)
	assert.Equal(t, []int64{2}, updated.Stops[0].MemberIDs)
	assert.Equal(t, []int64{1}, updated.Stops[1].MemberIDs)
}
