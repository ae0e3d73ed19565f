// create-admin bootstraps an administrator account. Registration through the
// API only creates regular users, so the first admin has to come from here.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const passwordEnv = "ADMIN_PASSWORD"

type adminCreator interface {
	CreateAdmin(ctx context.Context, username, email, password string) (*domain.User, error)
}

type options struct {
	username string
	email    string
	password string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the account details. The password may come from
// ADMIN_PASSWORD so it stays out of the process list.
func parseFlags(args []string, getenv func(string) string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("create-admin", pflag.ContinueOnError)
	flagSet.StringVar(&opts.username, "username", "", "admin username")
	flagSet.StringVar(&opts.email, "email", "", "admin email")
	flagSet.StringVar(&opts.password, "password", "", "admin password (default $"+passwordEnv+")")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if opts.password == "" {
		opts.password = getenv(passwordEnv)
	}
	if opts.username == "" || opts.email == "" || opts.password == "" {
		return opts, fmt.Errorf("--username, --email and --password (or $%s) are required", passwordEnv)
	}
	return opts, nil
}

// createAdmin is idempotent: an existing account with the same username or
// email is reported and left alone.
func createAdmin(ctx context.Context, creator adminCreator, opts options, logger *zap.Logger) error {
	user, err := creator.CreateAdmin(ctx, opts.username, opts.email, opts.password)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "CONFLICT" {
			logger.Info("admin already exists",
				zap.String("username", opts.username),
				zap.String("reason", domainErr.Message))
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("admin created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Getenv)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, "create-admin")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool := pg.PoolHandle()
	admins := service.NewAdminService(cfg.Auth,
		repository.NewUserRepository(pool),
		repository.NewLoginAttemptRepository(pool))
	return createAdmin(ctx, admins, opts, logger)
}
