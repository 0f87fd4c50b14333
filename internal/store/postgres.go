package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"shuttleplan/internal/config"
	"shuttleplan/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the pgx/v5 pool and exposes one repository per entity,
// grounded on the teacher's database.DB (a connection plus a named
// field per repository, each a distinct type so method sets never
// collide across entities).
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	EmployeeRepo EmployeeRepository
	ShiftRepo    ShiftRepository
	PlanRepo     PlanRepository
}

// Open builds a connection pool from Infra and runs the embedded schema.
func Open(ctx context.Context, infra *config.Infra, log *zap.Logger) (*Store, error) {
	connString := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		infra.DBHost, infra.DBPort, infra.DBName, infra.DBUser, infra.DBPassword, infra.DBSSLMode)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolCfg.MinConns = infra.DBMinConns
	poolCfg.MaxConns = infra.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run schema: %w", err)
	}

	s := &Store{pool: pool, log: log}
	s.EmployeeRepo = &employeeRepository{pool: pool}
	s.ShiftRepo = &shiftRepository{pool: pool}
	s.PlanRepo = &planRepository{pool: pool, log: log}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// HealthCheck verifies both the connection and the PostGIS extension.
func (s *Store) HealthCheck(ctx context.Context) error {
	var version string
	return s.pool.QueryRow(ctx, "SELECT PostGIS_Version()").Scan(&version)
}

// employeeRepository implements EmployeeRepository.
type employeeRepository struct {
	pool *pgxpool.Pool
}

func (r *employeeRepository) List(ctx context.Context, shiftID *int64) ([]models.Employee, error) {
	query := `SELECT id, name, ST_Y(home_location::geometry), ST_X(home_location::geometry), address, shift_id FROM employees`
	args := []interface{}{}
	if shiftID != nil {
		query += ` WHERE shift_id = $1`
		args = append(args, *shiftID)
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		var address *string
		if err := rows.Scan(&e.ID, &e.Name, &e.Home.Lat, &e.Home.Lng, &address, &e.ShiftID); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		if address != nil {
			e.Address = *address
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *employeeRepository) GetByID(ctx context.Context, id int64) (*models.Employee, error) {
	query := `SELECT id, name, ST_Y(home_location::geometry), ST_X(home_location::geometry), address, shift_id FROM employees WHERE id = $1`
	var e models.Employee
	var address *string
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.Name, &e.Home.Lat, &e.Home.Lng, &address, &e.ShiftID)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	if address != nil {
		e.Address = *address
	}
	return &e, nil
}

var _ EmployeeRepository = (*employeeRepository)(nil)

// shiftRepository implements ShiftRepository.
type shiftRepository struct {
	pool *pgxpool.Pool
}

func (r *shiftRepository) GetByID(ctx context.Context, id int64) (*models.Shift, error) {
	query := `SELECT id, name, color, start_time, end_time FROM shifts WHERE id = $1`
	var sh models.Shift
	err := r.pool.QueryRow(ctx, query, id).Scan(&sh.ID, &sh.Name, &sh.Color, &sh.StartTime, &sh.EndTime)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &sh, nil
}

var _ ShiftRepository = (*shiftRepository)(nil)

// planRepository implements PlanRepository.
type planRepository struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// CreatePlan inserts the plan row and each route row inside a single
// transaction, grounded on the teacher's eventRepository.Create.
func (r *planRepository) CreatePlan(ctx context.Context, plan *models.Plan, routes []models.Route) (*models.Plan, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	planQuery := `
		INSERT INTO plans (name, depot_lat, depot_lng, total_vehicles, total_distance, total_duration,
			total_passengers, max_walking_distance, num_small, num_large, small_capacity, large_capacity,
			buffer_seats, max_travel_time, vehicle_priority, traffic_mode, exclude_tolls, route_type,
			shift_id, shift_name, degraded)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, planQuery,
		plan.Name, plan.Depot.Lat, plan.Depot.Lng, plan.TotalVehicles, plan.TotalDistanceM, plan.TotalDurationSec,
		plan.TotalPassengers, plan.Config.WalkingCapM, plan.Config.NumSmall, plan.Config.NumLarge,
		plan.Config.SmallCapacity, plan.Config.LargeCapacity, plan.Config.BufferSeats, plan.Config.MaxTravelTimeMin,
		string(plan.Config.VehiclePriority), string(plan.Config.TrafficMode), plan.Config.ExcludeTolls,
		string(plan.Config.RouteType), plan.Config.ShiftID, plan.ShiftName, plan.Degraded,
	).Scan(&plan.ID, &plan.CreatedAt)
	if err != nil {
		r.log.Error("failed to create plan", zap.Error(err))
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	routeQuery := `
		INSERT INTO plan_routes (plan_id, vehicle_id, vehicle_type, capacity, passengers, distance, duration, polyline, stops)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	for _, route := range routes {
		polylineJSON, err := json.Marshal(route.Polyline)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal polyline: %w", err)
		}
		stopsJSON, err := json.Marshal(route.Stops)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stops: %w", err)
		}
		if _, err := tx.Exec(ctx, routeQuery, plan.ID, route.VehicleIndex, route.VehicleType, route.Capacity,
			route.Passengers, route.DistanceM, route.DurationSec, polylineJSON, stopsJSON); err != nil {
			r.log.Error("failed to create route", zap.Int64("plan_id", plan.ID), zap.Error(err))
			return nil, fmt.Errorf("failed to create route: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info("created plan", zap.Int64("plan_id", plan.ID), zap.Int("routes", len(routes)))
	return plan, nil
}

func (r *planRepository) GetPlan(ctx context.Context, id int64) (*models.Plan, []models.Route, error) {
	planQuery := `
		SELECT id, name, depot_lat, depot_lng, total_vehicles, total_distance, total_duration, total_passengers,
			max_walking_distance, num_small, num_large, small_capacity, large_capacity, buffer_seats,
			max_travel_time, vehicle_priority, traffic_mode, exclude_tolls, route_type, shift_id, shift_name,
			degraded, created_at
		FROM plans WHERE id = $1
	`
	var p models.Plan
	var priority, traffic, routeType string
	err := r.pool.QueryRow(ctx, planQuery, id).Scan(
		&p.ID, &p.Name, &p.Depot.Lat, &p.Depot.Lng, &p.TotalVehicles, &p.TotalDistanceM, &p.TotalDurationSec,
		&p.TotalPassengers, &p.Config.WalkingCapM, &p.Config.NumSmall, &p.Config.NumLarge, &p.Config.SmallCapacity,
		&p.Config.LargeCapacity, &p.Config.BufferSeats, &p.Config.MaxTravelTimeMin, &priority, &traffic,
		&p.Config.ExcludeTolls, &routeType, &p.Config.ShiftID, &p.ShiftName, &p.Degraded, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get plan: %w", err)
	}
	p.Config.VehiclePriority = models.VehiclePriority(priority)
	p.Config.TrafficMode = models.TrafficMode(traffic)
	p.Config.RouteType = models.RouteType(routeType)

	routesQuery := `
		SELECT id, vehicle_id, vehicle_type, capacity, passengers, distance, duration, polyline, stops
		FROM plan_routes WHERE plan_id = $1 ORDER BY vehicle_id
	`
	rows, err := r.pool.Query(ctx, routesQuery, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var route models.Route
		var polylineJSON, stopsJSON []byte
		if err := rows.Scan(&route.ID, &route.VehicleIndex, &route.VehicleType, &route.Capacity, &route.Passengers,
			&route.DistanceM, &route.DurationSec, &polylineJSON, &stopsJSON); err != nil {
			return nil, nil, fmt.Errorf("failed to scan route: %w", err)
		}
		if err := json.Unmarshal(polylineJSON, &route.Polyline); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal polyline: %w", err)
		}
		if err := json.Unmarshal(stopsJSON, &route.Stops); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal stops: %w", err)
		}
		route.PlanID = id
		routes = append(routes, route)
	}
	return &p, routes, rows.Err()
}

func (r *planRepository) DeletePlan(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CommitRouteUpdate writes one route row and recomputes the plan's
// totals in a single transaction, per the Plan Editor's commit contract
// in spec.md §4.5 ("within a single database transaction, update the
// route row and then recompute the plan's totals").
func (r *planRepository) CommitRouteUpdate(ctx context.Context, planID int64, route models.Route) (*models.Plan, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	polylineJSON, err := json.Marshal(route.Polyline)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polyline: %w", err)
	}
	stopsJSON, err := json.Marshal(route.Stops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stops: %w", err)
	}

	updateQuery := `
		UPDATE plan_routes SET passengers=$1, distance=$2, duration=$3, polyline=$4, stops=$5
		WHERE id = $6 AND plan_id = $7
	`
	result, err := tx.Exec(ctx, updateQuery, route.Passengers, route.DistanceM, route.DurationSec,
		polylineJSON, stopsJSON, route.ID, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to update route: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	totalsQuery := `
		UPDATE plans SET
			total_vehicles = (SELECT COUNT(*) FROM plan_routes WHERE plan_id = $1 AND passengers > 0),
			total_distance = COALESCE((SELECT SUM(distance) FROM plan_routes WHERE plan_id = $1), 0),
			total_duration = COALESCE((SELECT SUM(duration) FROM plan_routes WHERE plan_id = $1), 0),
			total_passengers = COALESCE((SELECT SUM(passengers) FROM plan_routes WHERE plan_id = $1), 0)
		WHERE id = $1
		RETURNING id, total_vehicles, total_distance, total_duration, total_passengers
	`
	var p models.Plan
	p.ID = planID
	if err := tx.QueryRow(ctx, totalsQuery, planID).Scan(&p.ID, &p.TotalVehicles, &p.TotalDistanceM, &p.TotalDurationSec, &p.TotalPassengers); err != nil {
		return nil, fmt.Errorf("failed to recompute plan totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("failed to commit route update", zap.Error(err))
		return nil, fmt.Errorf("failed to commit route update: %w", err)
	}
	return &p, nil
}

func (r *planRepository) FleetStatus(ctx context.Context) (FleetStatus, error) {
	query := `
		SELECT num_small, num_large, small_capacity, large_capacity
		FROM plans ORDER BY created_at DESC LIMIT 1
	`
	var fs FleetStatus
	err := r.pool.QueryRow(ctx, query).Scan(&fs.NumSmall, &fs.NumLarge, &fs.SmallCapacity, &fs.LargeCapacity)
	if err == pgx.ErrNoRows {
		return FleetStatus{}, nil
	}
	if err != nil {
		return FleetStatus{}, fmt.Errorf("failed to read fleet status: %w", err)
	}
	return fs, nil
}

var _ PlanRepository = (*planRepository)(nil)
