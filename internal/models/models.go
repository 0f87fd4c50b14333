package models

import "time"

// Coordinates is a WGS84 lat/lng point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point falls within the WGS84 range.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Employee is a workforce member with a home location, read-only by the
// planning core. Mutation happens externally (ingestion, address editing).
type Employee struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Home    Coordinates
	Address string `json:"address,omitempty"`
	ShiftID *int64 `json:"shift_id,omitempty"`
}

// Shift filters employees and tags plans for display.
type Shift struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Color     string  `json:"color,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

// StopMember is one employee's membership in a Stop, with the distance
// from their home to the stop's centroid (or snapped position).
type StopMember struct {
	EmployeeID   int64
	Name         string
	WalkDistance float64 // meters
}

// Stop is a transient clustering output: a candidate pickup/dropoff point
// aggregating one or more employees under the walking cap. It never
// persists on its own — routes denormalize the stop detail they need.
type Stop struct {
	ClusterKey   int
	Centroid     Coordinates
	Members      []StopMember
	MaxWalk      float64 // meters, max over Members
	Original     *Coordinates // pre-snap centroid, set once snapping runs
	RoadName     string
	Individual   bool // synthesized from a residual outlier; single member, MaxWalk == 0
}

// EmployeeIDs returns the member employee ids in membership order.
func (s Stop) EmployeeIDs() []int64 {
	ids := make([]int64, len(s.Members))
	for i, m := range s.Members {
		ids[i] = m.EmployeeID
	}
	return ids
}

// Demand is the passenger count a Stop contributes to the VRP.
func (s Stop) Demand() int {
	return len(s.Members)
}

// VehiclePriority selects which vehicle class the solver fills first.
type VehiclePriority string

const (
	PrioritySmall VehiclePriority = "small"
	PriorityLarge VehiclePriority = "large"
	PriorityAuto  VehiclePriority = "auto"
)

// TrafficMode selects the duration-scaling factor applied before solving.
type TrafficMode string

const (
	TrafficNone    TrafficMode = "none"
	TrafficMorning TrafficMode = "morning"
	TrafficEvening TrafficMode = "evening"
)

// RouteType controls which endpoints of a route are pinned to the depot.
type RouteType string

const (
	RouteRing    RouteType = "ring"
	RouteToHome  RouteType = "to_home"
	RouteToDepot RouteType = "to_depot"
)

// PlanConfig is the full set of knobs for one planning run; it is
// snapshotted onto the persisted Plan so later config changes never
// mutate the history of an existing plan.
type PlanConfig struct {
	WalkingCapM       float64
	NumSmall          int
	NumLarge          int
	SmallCapacity     int
	LargeCapacity     int
	BufferSeats       int
	MaxTravelTimeMin  float64
	VehiclePriority   VehiclePriority
	TrafficMode       TrafficMode
	ExcludeTolls      bool
	RouteType         RouteType
	ShiftID           *int64
}

// Plan is a persisted planning run: the depot, the config it was produced
// with, and aggregate totals over its Routes.
type Plan struct {
	ID               int64
	Name             string
	Depot            Coordinates
	Config           PlanConfig
	ShiftName        string
	TotalVehicles    int
	TotalDistanceM   float64
	TotalDurationSec float64
	TotalPassengers  int
	Degraded         bool // true if any adapter call during creation used a fallback
	CreatedAt        time.Time
}

// RouteStop is one persisted, denormalized stop within a Route. It
// survives later edits to the underlying Employee rows.
type RouteStop struct {
	Location          Coordinates
	MemberIDs         []int64
	MemberNames       []string
	WalkDistances     []float64
	RoadName          string
	DistanceToDepotM  float64 // populated for ring/to_depot
	DistanceFromDepotM float64 // populated for to_home
}

// PassengerCount returns how many employees this stop carries.
func (s RouteStop) PassengerCount() int {
	return len(s.MemberIDs)
}

// Route is a single vehicle's assignment within a Plan.
type Route struct {
	ID           int64
	PlanID       int64
	VehicleIndex int
	VehicleType  string // "small" or "large"
	Capacity     int    // already reduced by buffer seats
	Passengers   int
	DistanceM    float64
	DurationSec  float64
	Polyline     []Coordinates
	Stops        []RouteStop
}
