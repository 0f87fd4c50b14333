package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 41.0, Lng: 29.0}.Valid())
	assert.False(t, Coordinates{Lat: 91.0, Lng: 29.0}.Valid())
	assert.False(t, Coordinates{Lat: 41.0, Lng: -181.0}.Valid())
}

func TestStopDemandAndEmployeeIDs(t *testing.T) {
	stop := Stop{
		Members: []StopMember{
			{EmployeeID: 1, Name: "A"},
			{EmployeeID: 2, Name: "B"},
		},
	}

	assert.Equal(t, 2, stop.Demand())
	assert.Equal(t, []int64{1, 2}, stop.EmployeeIDs())
}

func TestRouteStopPassengerCount(t *testing.T) {
	rs := RouteStop{MemberIDs: []int64{1, 2, 3}}
	assert.Equal(t, 3, rs.PassengerCount())
}
