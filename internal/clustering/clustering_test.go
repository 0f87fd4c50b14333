package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttleplan/internal/models"
)

func membershipIDs(stops []models.Stop) []int64 {
	var ids []int64
	for _, s := range stops {
		ids = append(ids, s.EmployeeIDs()...)
	}
	return ids
}

// TestDensityEngine_S1_SingleStop exercises spec scenario S1: three
// employees close enough together collapse into one stop.
func TestDensityEngine_S1_SingleStop(t *testing.T) {
	points := []EmployeePoint{
		{EmployeeID: 1, Name: "A", Home: models.Coordinates{Lat: 41.0000, Lng: 29.0000}},
		{EmployeeID: 2, Name: "B", Home: models.Coordinates{Lat: 41.0005, Lng: 29.0005}},
		{EmployeeID: 3, Name: "C", Home: models.Coordinates{Lat: 41.0010, Lng: 29.0000}},
	}

	result, err := NewDensityEngine().Cluster(points, 200, 0)
	require.NoError(t, err)

	require.Len(t, result.Stops, 1)
	assert.Len(t, result.Stops[0].Members, 3)
	assert.ElementsMatch(t, []int64{1, 2, 3}, result.Stops[0].EmployeeIDs())
}

// TestDensityEngine_S3_AllIndividual exercises spec scenario S3: ten
// employees scattered 5km apart all become individual stops.
func TestDensityEngine_S3_AllIndividual(t *testing.T) {
	var points []EmployeePoint
	for i := 0; i < 10; i++ {
		points = append(points, EmployeePoint{
			EmployeeID: int64(i + 1),
			Name:       "E",
			Home:       models.Coordinates{Lat: 41.0 + float64(i)*0.05, Lng: 29.0},
		})
	}

	result, err := NewDensityEngine().Cluster(points, 200, 0)
	require.NoError(t, err)

	require.Len(t, result.Stops, 10)
	for _, s := range result.Stops {
		assert.True(t, s.Individual)
		assert.Equal(t, 0.0, s.MaxWalk)
		assert.Len(t, s.Members, 1)
	}
}

// TestDensityEngine_MembershipPartition checks the universal invariant
// that every employee appears in exactly one output stop.
func TestDensityEngine_MembershipPartition(t *testing.T) {
	points := []EmployeePoint{
		{EmployeeID: 1, Home: models.Coordinates{Lat: 41.0000, Lng: 29.0000}},
		{EmployeeID: 2, Home: models.Coordinates{Lat: 41.0005, Lng: 29.0005}},
		{EmployeeID: 3, Home: models.Coordinates{Lat: 42.0000, Lng: 30.0000}},
		{EmployeeID: 4, Home: models.Coordinates{Lat: 42.0005, Lng: 30.0005}},
	}

	result, err := NewDensityEngine().Cluster(points, 200, 0)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, membershipIDs(result.Stops))
	assert.Empty(t, result.Residual)
}

// TestDensityEngine_WalkingBound checks every non-individual stop obeys
// the configured walking cap.
func TestDensityEngine_WalkingBound(t *testing.T) {
	points := []EmployeePoint{
		{EmployeeID: 1, Home: models.Coordinates{Lat: 41.0000, Lng: 29.0000}},
		{EmployeeID: 2, Home: models.Coordinates{Lat: 41.0005, Lng: 29.0005}},
		{EmployeeID: 3, Home: models.Coordinates{Lat: 41.0010, Lng: 29.0000}},
	}

	result, err := NewDensityEngine().Cluster(points, 200, 0)
	require.NoError(t, err)

	for _, s := range result.Stops {
		if s.Individual {
			continue
		}
		assert.LessOrEqual(t, s.MaxWalk, 200.0)
	}
}

func TestDensityEngine_EmptyInput(t *testing.T) {
	result, err := NewDensityEngine().Cluster(nil, 200, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Stops)
}

func TestCapacityEngine_MembershipPartition(t *testing.T) {
	var points []EmployeePoint
	for i := 0; i < 30; i++ {
		points = append(points, EmployeePoint{
			EmployeeID: int64(i + 1),
			Home:       models.Coordinates{Lat: 41.0 + float64(i%5)*0.0005, Lng: 29.0 + float64(i/5)*0.0005},
		})
	}

	result, err := NewCapacityEngine().Cluster(points, 200, 16)
	require.NoError(t, err)

	var ids []int64
	for _, s := range result.Stops {
		ids = append(ids, s.EmployeeIDs()...)
	}
	assert.Len(t, ids, 30)
}

func TestNew_DefaultsToDensity(t *testing.T) {
	eng := New("")
	_, ok := eng.(*DensityEngine)
	assert.True(t, ok)
}

func TestNew_Capacity(t *testing.T) {
	eng := New(MethodCapacity)
	_, ok := eng.(*CapacityEngine)
	assert.True(t, ok)
}
