// Package config loads infrastructure configuration from the
// environment (database, cache, routing-engine endpoint) and holds the
// constant tables (traffic factors, main-road keywords) the planning
// core is built against.
package config

import (
	"os"
	"strconv"
	"time"

	"shuttleplan/internal/models"
)

// Infra holds the connection settings for the planning core's
// out-of-process collaborators.
type Infra struct {
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	DBMinConns int32
	DBMaxConns int32

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	RoutingBaseURL string
	RoutingProfile string
}

// LoadInfraFromEnv loads Infra from the environment, falling back to
// development defaults when a variable is unset.
func LoadInfraFromEnv() *Infra {
	return &Infra{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "shuttleplan"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBMinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		DBMaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,

		RoutingBaseURL: getEnv("ROUTING_BASE_URL", "https://router.project-osrm.org"),
		RoutingProfile: getEnv("ROUTING_PROFILE", "driving"),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// DefaultPlanConfig returns the spec's documented defaults for a fresh
// PlanConfig (walking_cap_m=200, fleet 5x16/5x27, auto priority, ...).
func DefaultPlanConfig() models.PlanConfig {
	return models.PlanConfig{
		WalkingCapM:      200,
		NumSmall:         5,
		NumLarge:         5,
		SmallCapacity:    16,
		LargeCapacity:    27,
		BufferSeats:      0,
		MaxTravelTimeMin: 65,
		VehiclePriority:  models.PriorityAuto,
		TrafficMode:      models.TrafficNone,
		ExcludeTolls:     false,
		RouteType:        models.RouteRing,
		ShiftID:          nil,
	}
}

// TrafficFactor is the constant scaling table from spec.md §6.
func TrafficFactor(mode models.TrafficMode) float64 {
	switch mode {
	case models.TrafficMorning:
		return 1.4
	case models.TrafficEvening:
		return 1.6
	default:
		return 1.0
	}
}

// MainRoadKeywords and ResidentialKeywords drive the road-network
// adapter's snap preference (spec.md §4.2); translatable/extensible by
// replacing these slices or wiring them from a config file per locale.
var (
	MainRoadKeywords = []string{
		"avenue", "ave", "boulevard", "blvd", "highway", "hwy",
		"connector", "main street", "main st", "parkway", "pkwy",
		"expressway", "freeway", "route",
	}
	ResidentialKeywords = []string{
		"lane", "ln", "court", "ct", "close", "way", "drive", "dr",
		"alley", "mews", "cul-de-sac",
	}
)
