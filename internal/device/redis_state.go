package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisStateKeyPrefix = "zigbee:state:"

// RedisStateStore keeps last-known device state in Redis hashes, one field
// per state key with a JSON-encoded value. It is used instead of the SQLite
// state column when several gateways share state or state should expire.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStateStore wraps rdb. A zero ttl keeps state forever.
func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func stateKey(ieee string) string { return redisStateKeyPrefix + ieee }

// LoadState returns the stored state, or an empty State if none is stored.
func (s *RedisStateStore) LoadState(ctx context.Context, ieee string) (State, error) {
	fields, err := s.rdb.HGetAll(ctx, stateKey(ieee)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading state for %s: %w", ieee, err)
	}
	return decodeStateFields(fields), nil
}

// MergeState writes patch into the device's hash, refreshes the TTL, and
// returns the merged state.
func (s *RedisStateStore) MergeState(ctx context.Context, ieee string, patch State) (State, error) {
	key := stateKey(ieee)

	values := make(map[string]any, len(patch))
	for k, v := range patch {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding state field %q: %w", k, err)
		}
		values[k] = string(encoded)
	}

	var all *redis.MapStringStringCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merging state for %s: %w", ieee, err)
	}

	return decodeStateFields(all.Val()), nil
}

// DeleteState removes a device's stored state.
func (s *RedisStateStore) DeleteState(ctx context.Context, ieee string) error {
	return s.rdb.Del(ctx, stateKey(ieee)).Err()
}

func decodeStateFields(fields map[string]string) State {
	state := make(State, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Written by something other than this store; keep the raw text.
			v = raw
		}
		state[k] = v
	}
	return state
}
