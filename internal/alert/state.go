package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Level is the crowd alert band
type Level int

const (
	Normal Level = iota
	Advisory
	Warning
	Critical
)

func (l Level) String() string {
	switch l {
	case Normal:
		return "NORMAL"
	case Advisory:
		return "ADVISORY"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// State is the single active alert state. Exactly one exists at a time;
// only the engine's transition function mutates it.
type State struct {
	Level     Level     `json:"level"`
	EnteredAt time.Time `json:"entered_at"`
	Count     int       `json:"count"`
}

// StateStore persists the alert state across restarts
type StateStore interface {
	Get(ctx context.Context) (*State, error)
	Set(ctx context.Context, state *State) error
}

const stateKey = "alert_state:venue"

// RedisStateStore keeps the alert state in Redis
type RedisStateStore struct {
	redis *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(redisClient *redis.Client) *RedisStateStore {
	return &RedisStateStore{redis: redisClient}
}

// Get retrieves the alert state. A missing key means Normal.
func (s *RedisStateStore) Get(ctx context.Context) (*State, error) {
	data, err := s.redis.Get(ctx, stateKey).Result()
	if err == redis.Nil {
		return &State{Level: Normal}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

// Set saves the alert state
func (s *RedisStateStore) Set(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Expire after 7 days so an abandoned deployment decays to Normal
	if err := s.redis.Set(ctx, stateKey, data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}

	return nil
}
