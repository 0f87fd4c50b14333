package roadnetwork

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shuttleplan/internal/models"
)

// DistanceCache is a read-through cache of pairwise distance/duration
// entries in front of matrix calls (route-geometry and snap calls are
// not cached), fronting the routing engine the way the teacher's SQL-backed
// DistanceCacheRepository did, but promoted to a shared process cache
// per spec.md §5's resource model.
type DistanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDistanceCache wraps a redis client with the TTL to apply to new
// entries.
func NewDistanceCache(client *redis.Client, ttl time.Duration) *DistanceCache {
	return &DistanceCache{client: client, ttl: ttl}
}

func pairKey(prefix string, a, b models.Coordinates) string {
	raw := fmt.Sprintf("%s:%.6f,%.6f:%.6f,%.6f", prefix, a.Lat, a.Lng, b.Lat, b.Lng)
	sum := sha256.Sum256([]byte(raw))
	return "shuttleplan:dist:" + hex.EncodeToString(sum[:16])
}

type cachedPair struct {
	DistanceM   float64 `json:"distance_m"`
	DurationSec float64 `json:"duration_sec"`
}

// Get returns a cached pairwise distance/duration, or ok=false on a
// cache miss or any Redis error (a cache is best-effort, never a hard
// dependency).
func (c *DistanceCache) Get(ctx context.Context, a, b models.Coordinates) (distanceM, durationSec float64, ok bool) {
	if c == nil || c.client == nil {
		return 0, 0, false
	}
	raw, err := c.client.Get(ctx, pairKey("pair", a, b)).Bytes()
	if err != nil {
		return 0, 0, false
	}
	var p cachedPair
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, 0, false
	}
	return p.DistanceM, p.DurationSec, true
}

// Set stores a pairwise distance/duration. Errors are swallowed; a
// failed cache write must never fail the planning pipeline.
func (c *DistanceCache) Set(ctx context.Context, a, b models.Coordinates, distanceM, durationSec float64) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(cachedPair{DistanceM: distanceM, DurationSec: durationSec})
	if err != nil {
		return
	}
	c.client.Set(ctx, pairKey("pair", a, b), raw, c.ttl)
}
