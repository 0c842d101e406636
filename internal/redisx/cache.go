package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the read-through layer in front of Postgres. Every method treats
// a missing key as a miss, not an error. A nil *Cache is a valid no-op.
type Cache struct {
	RDB *redis.Client
}

// StatusEntry carries the order parties so readers can authorize against
// the cached copy.
type StatusEntry struct {
	Status     string    `json:"status"`
	CustomerID string    `json:"customer_id"`
	FloristID  string    `json:"florist_id,omitempty"`
	CourierID  string    `json:"courier_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type LocationEntry struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cache) enabled() bool { return c != nil && c.RDB != nil }

func (c *Cache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, key, b, ttl).Err()
}

func (c *Cache) getJSON(ctx context.Context, key string, out any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	b, err := c.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, out)
}

func (c *Cache) SetStatus(ctx context.Context, orderID string, e StatusEntry) error {
	return c.setJSON(ctx, fmt.Sprintf(KeyOrderStatus, orderID), e, TTLStatusCache)
}

func (c *Cache) Status(ctx context.Context, orderID string) (StatusEntry, bool, error) {
	var e StatusEntry
	ok, err := c.getJSON(ctx, fmt.Sprintf(KeyOrderStatus, orderID), &e)
	return e, ok, err
}

func (c *Cache) InvalidateStatus(ctx context.Context, orderID string) error {
	if !c.enabled() {
		return nil
	}
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// RememberOrder maps an idempotency key to the order created for it.
func (c *Cache) RememberOrder(ctx context.Context, externalID, orderID string) error {
	if !c.enabled() {
		return nil
	}
	return c.RDB.SetNX(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID), orderID, TTLIdempotency).Err()
}

func (c *Cache) OrderFor(ctx context.Context, externalID string) (string, bool, error) {
	if !c.enabled() {
		return "", false, nil
	}
	id, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *Cache) SetCourierLocation(ctx context.Context, orderID string, loc LocationEntry) error {
	return c.setJSON(ctx, fmt.Sprintf(KeyCourierLocation, orderID), loc, TTLCourierLocation)
}

func (c *Cache) CourierLocation(ctx context.Context, orderID string) (LocationEntry, bool, error) {
	var e LocationEntry
	ok, err := c.getJSON(ctx, fmt.Sprintf(KeyCourierLocation, orderID), &e)
	return e, ok, err
}
