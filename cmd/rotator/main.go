// rotator rotates the signing secret outside the API process. It is for
// deployments that run the API with ROTATION_ENABLED=false.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/secret"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags parses args into a copy of cfg, using cfg's values as defaults.
func applyFlags(args []string, cfg config.SecretConfig) (config.SecretConfig, bool, error) {
	var once bool
	flagSet := pflag.NewFlagSet("rotator", pflag.ContinueOnError)
	flagSet.BoolVar(&once, "once", false, "rotate a single time and exit")
	flagSet.DurationVar(&cfg.RotationInterval, "interval", cfg.RotationInterval, "time between rotations")
	flagSet.IntVar(&cfg.Length, "length", cfg.Length, "generated secret length (minimum 64)")
	flagSet.StringVar(&cfg.Path, "store", cfg.Path, "path of the secret file for the file backend")
	flagSet.StringVar(&cfg.Backend, "backend", cfg.Backend, "secret store backend: file or redis")
	flagSet.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "hash key for the redis backend")

	if err := flagSet.Parse(args); err != nil {
		return cfg, false, err
	}
	if cfg.RotationEnabled {
		return cfg, false, errors.New("ROTATION_ENABLED is true, so the API already rotates this store; set ROTATION_ENABLED=false to run the rotator")
	}
	if cfg.Length < secret.MinLength {
		return cfg, false, fmt.Errorf("--length must be at least %d", secret.MinLength)
	}
	if cfg.RotationInterval <= 0 {
		return cfg, false, fmt.Errorf("--interval must be positive")
	}
	return cfg, once, nil
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	secretCfg, once, err := applyFlags(args, cfg.Secret)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logger, "secret-rotator")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	var client redis.UniversalClient
	if secretCfg.Backend == config.SecretBackendRedis {
		rdb := persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		client = rdb.Client
	}
	store, err := secret.OpenStore(secretCfg, client)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := secret.NewScheduler(store, secret.SchedulerConfig{
		Interval: secretCfg.RotationInterval,
		Length:   secretCfg.Length,
	}, logger, nil)

	if once {
		return scheduler.RotateOnce(ctx)
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	logger.Info("rotator running",
		zap.String("backend", secretCfg.Backend),
		zap.Duration("interval", secretCfg.RotationInterval))
	scheduler.Wait()
	return nil
}
