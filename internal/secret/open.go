package secret

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/auth-service/internal/config"
)

// OpenStore returns the store selected by cfg.Backend. client is only used by
// the redis backend.
func OpenStore(cfg config.SecretConfig, client redis.UniversalClient) (Store, error) {
	switch cfg.Backend {
	case config.SecretBackendFile, "":
		return NewFileStore(cfg.Path), nil
	case config.SecretBackendRedis:
		if client == nil {
			return nil, errors.New("redis secret store requires a redis client")
		}
		return NewRedisStore(client, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown secret store backend %q", cfg.Backend)
	}
}
