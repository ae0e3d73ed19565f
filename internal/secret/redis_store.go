package secret

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisCurrentField  = "current"
	redisPreviousField = "previous"
)

// rotateScript shifts current into previous and sets the new current in one
// server-side step.
var rotateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'current')
if cur then
  redis.call('HSET', KEYS[1], 'previous', cur)
end
redis.call('HSET', KEYS[1], 'current', ARGV[1])
return 1
`)

// RedisStore keeps the keyring in a single Redis hash.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore returns a store using the hash at key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = "auth:signing-secret"
	}
	return &RedisStore{client: client, key: key}
}

// Read fetches both fields with a single HGETALL. A missing key comes back
// as an empty hash.
func (s *RedisStore) Read(ctx context.Context) (Keyring, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Keyring{}, fmt.Errorf("read secret hash: %w", err)
	}
	current := fields[redisCurrentField]
	if current == "" {
		return Keyring{}, ErrUninitialized
	}
	return Keyring{Current: Secret(current), Previous: Secret(fields[redisPreviousField])}, nil
}

// Write rotates next in via a Lua script so the pair changes atomically.
func (s *RedisStore) Write(ctx context.Context, next Secret) error {
	if err := validate(next); err != nil {
		return err
	}
	if err := rotateScript.Run(ctx, s.client, []string{s.key}, string(next)).Err(); err != nil {
		return fmt.Errorf("write secret hash: %w", err)
	}
	return nil
}
