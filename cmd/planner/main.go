// Command planner is the composition root for the shuttle-route
// planning core. It wires the Postgres-backed store, the Redis distance
// cache, the OSRM road-network adapter, the clustering engine and the
// CVRP solver together, then runs one planning pass end-to-end for
// operational smoke-testing. It is not an HTTP server: the planning
// core's operations are invoked directly, matching the teacher's
// run()-returns-error top-level pattern rather than its Wails/HTTP
// transport (out of scope here).
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shuttleplan/internal/clustering"
	"shuttleplan/internal/config"
	"shuttleplan/internal/cvrp"
	"shuttleplan/internal/logging"
	"shuttleplan/internal/models"
	"shuttleplan/internal/orchestrator"
	"shuttleplan/internal/planeditor"
	"shuttleplan/internal/roadnetwork"
	"shuttleplan/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	depotLat := flag.Float64("depot-lat", 41.0082, "depot latitude")
	depotLng := flag.Float64("depot-lng", 28.9784, "depot longitude")
	shiftIDFlag := flag.Int64("shift-id", 0, "optional shift id to filter employees by (0 = all)")
	clusterMethod := flag.String("cluster-method", string(clustering.MethodDensity), "density or capacity")
	dev := flag.Bool("dev", false, "console-friendly development logging")
	fleetStatusOnly := flag.Bool("fleet-status", false, "print the current fleet status and exit, skipping plan creation")
	flag.Parse()

	baseLog, err := logging.New(*dev)
	if err != nil {
		return err
	}
	defer baseLog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	infra := config.LoadInfraFromEnv()

	db, err := store.Open(ctx, infra, logging.Component(baseLog, "store"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.HealthCheck(ctx); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     infra.RedisAddr,
		Password: infra.RedisPassword,
		DB:       infra.RedisDB,
	})
	defer redisClient.Close()
	cache := roadnetwork.NewDistanceCache(redisClient, infra.RedisTTL)

	roads := roadnetwork.NewOSRMAdapter(infra.RoutingBaseURL, infra.RoutingProfile, cache, logging.Component(baseLog, "osrm"))
	clusterEngine := clustering.New(clustering.Method(*clusterMethod))
	solver := cvrp.NewHeuristicSolver(logging.Component(baseLog, "cvrp"))

	orch := orchestrator.New(db.EmployeeRepo, db.ShiftRepo, db.PlanRepo, roads, clusterEngine, solver, logging.Component(baseLog, "orchestrator"))
	_ = planeditor.New(db.PlanRepo, db.EmployeeRepo, roads, logging.Component(baseLog, "editor")) // wired for later edit commands; unused in this smoke pass

	if *fleetStatusOnly {
		status, err := db.PlanRepo.FleetStatus(ctx)
		if err != nil {
			return err
		}
		baseLog.Info("fleet status",
			zap.Int("num_small", status.NumSmall), zap.Int("num_large", status.NumLarge),
			zap.Int("small_capacity", status.SmallCapacity), zap.Int("large_capacity", status.LargeCapacity))
		return nil
	}

	cfg := config.DefaultPlanConfig()
	cfg.RouteType = models.RouteRing
	if *shiftIDFlag != 0 {
		cfg.ShiftID = shiftIDFlag
	}

	req := orchestrator.Request{
		Name:   "smoke test plan",
		Depot:  models.Coordinates{Lat: *depotLat, Lng: *depotLng},
		Config: cfg,
	}

	plan, routes, err := orch.CreatePlan(ctx, req)
	if err != nil {
		return err
	}

	baseLog.Info("plan created",
		zap.Int64("plan_id", plan.ID),
		zap.Int("routes", len(routes)),
		zap.Int("total_vehicles", plan.TotalVehicles),
		zap.Float64("total_distance_m", plan.TotalDistanceM),
		zap.Float64("total_duration_sec", plan.TotalDurationSec),
		zap.Int("total_passengers", plan.TotalPassengers),
		zap.Bool("degraded", plan.Degraded))

	return nil
}
