package roadnetwork

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shuttleplan/internal/models"
)

func TestFallbackMatrix_SelfDistanceZero(t *testing.T) {
	points := []models.Coordinates{
		{Lat: 41.0, Lng: 29.0},
		{Lat: 41.01, Lng: 29.01},
	}
	result := fallbackMatrix(points)

	assert.True(t, result.Fallback)
	assert.Equal(t, 0.0, result.DistancesM[0][0])
	assert.Greater(t, result.DistancesM[0][1], 0.0)
	assert.Greater(t, result.DurationsSec[0][1], 0.0)
}

func TestFallbackSnap_InvalidUnchanged(t *testing.T) {
	p := models.Coordinates{Lat: 41.0, Lng: 29.0}
	result := fallbackSnap(p)

	assert.False(t, result.Valid)
	assert.True(t, result.Fallback)
	assert.Equal(t, p, result.Snapped)
}

func TestFallbackRoute_TotalsMatchLegs(t *testing.T) {
	points := []models.Coordinates{
		{Lat: 41.0, Lng: 29.0},
		{Lat: 41.01, Lng: 29.0},
		{Lat: 41.02, Lng: 29.0},
	}
	result := fallbackRoute(points)

	var sumDist, sumDur float64
	for _, l := range result.Legs {
		sumDist += l.DistanceM
		sumDur += l.DurationSec
	}
	assert.InDelta(t, sumDist, result.DistanceM, 0.001)
	assert.InDelta(t, sumDur, result.DurationSec, 0.001)
}

func TestIsMainRoadAndResidential(t *testing.T) {
	assert.True(t, isMainRoad("Grand Boulevard"))
	assert.True(t, isMainRoad("Route 9"))
	assert.False(t, isMainRoad("Willow Close"))
	assert.True(t, isResidential("Willow Close"))
	assert.False(t, isResidential("Grand Boulevard"))
}
