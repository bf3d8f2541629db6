// Package cache stores JSON snapshots of upstream data together with the time
// they were written, so readers can apply a freshness window.
//
// Two stores are provided: Redis for shared deployments and Memory for a
// single process or tests. Entries outlive the freshness window; staleness is
// the reader's decision, expiry is only housekeeping.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Default keys and lifetimes.
const (
	KeyEvents    = "sportsboard:events"
	KeySecondary = "sportsboard:secondary"
	KeyScores    = "sportsboard:scores"

	DefaultTTL = 24 * time.Hour
)

// Store is a byte-oriented key/value store with per-key TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type envelope struct {
	LastUpdated time.Time       `json:"last_updated"`
	Data        json.RawMessage `json:"data"`
}

// PutJSON stores v under key stamped with updatedAt.
func PutJSON(ctx context.Context, s Store, key string, v interface{}, updatedAt time.Time, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	raw, err := json.Marshal(envelope{LastUpdated: updatedAt.UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshaling envelope %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// GetJSON loads key into v and returns when it was last updated.
// A missing key yields ErrMiss.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) (time.Time, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return time.Time{}, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return time.Time{}, fmt.Errorf("unmarshaling envelope %s: %w", key, err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return time.Time{}, fmt.Errorf("unmarshaling %s: %w", key, err)
	}
	return env.LastUpdated, nil
}
