package regionstatus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// RedisBackend stores the status map as a Redis hash, one field per region.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend returns a backend using the hash at key.
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// Load implements Backend. A missing hash loads as an empty map.
func (b *RedisBackend) Load(ctx context.Context) (Status, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading hash %s: %w", b.key, err)
	}
	return decodeHash(fields)
}

// Put implements Backend.
func (b *RedisBackend) Put(ctx context.Context, regionID string, entered bool) error {
	if err := b.client.HSet(ctx, b.key, regionID, strconv.FormatBool(entered)).Err(); err != nil {
		return fmt.Errorf("writing hash %s: %w", b.key, err)
	}
	return nil
}

func decodeHash(fields map[string]string) (Status, error) {
	status := make(Status, len(fields))
	for regionID, raw := range fields {
		entered, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: region %s = %q", ErrInvalidValue, regionID, raw)
		}
		status[regionID] = entered
	}
	return status, nil
}
