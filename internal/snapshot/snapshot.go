// Package snapshot keeps a redis hash per ride with its availability so
// polling clients can read status and seat counts without touching the
// store or the ride's lock.
package snapshot

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/carpool/internal/models"
)

type Snapshot struct {
	RideID         string    `json:"ride_id"`
	Status         string    `json:"status"`
	AvailableSeats int       `json:"available_seats"`
	TotalSeats     int       `json:"total_seats"`
	Updated        time.Time `json:"updated"`
}

type Cache struct {
	client *redis.Client
}

func NewCache(addr, password string) *Cache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Cache{client: c}
}

func NewCacheWithClient(c *redis.Client) *Cache { return &Cache{client: c} }

func key(rideID string) string { return "ride:snap:" + rideID }

func (c *Cache) Put(ctx context.Context, r *models.Ride) error {
	return c.Set(ctx, r.ID, string(r.Status), r.AvailableSeats, r.TotalSeats)
}

func (c *Cache) Set(ctx context.Context, rideID, status string, available, total int) error {
	return c.client.HSet(ctx, key(rideID), map[string]interface{}{
		"status":          status,
		"available_seats": available,
		"total_seats":     total,
		"updated":         time.Now().Format(time.RFC3339),
	}).Err()
}

func (c *Cache) Get(ctx context.Context, rideID string) (Snapshot, bool) {
	m, err := c.client.HGetAll(ctx, key(rideID)).Result()
	if err != nil || len(m) == 0 {
		return Snapshot{}, false
	}
	s := Snapshot{RideID: rideID, Status: m["status"]}
	s.AvailableSeats, _ = strconv.Atoi(m["available_seats"])
	s.TotalSeats, _ = strconv.Atoi(m["total_seats"])
	if t, err := time.Parse(time.RFC3339, m["updated"]); err == nil {
		s.Updated = t
	}
	return s, true
}

func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.client.Close() }
