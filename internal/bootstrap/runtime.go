// Package bootstrap wires the database, schema and Redis for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kazumasamatsumoto/api-insta/internal/cache"
	"github.com/kazumasamatsumoto/api-insta/internal/config"
	"github.com/kazumasamatsumoto/api-insta/internal/database"
	"github.com/kazumasamatsumoto/api-insta/internal/middleware"
	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/observability"
	"github.com/kazumasamatsumoto/api-insta/internal/repository"
	"github.com/kazumasamatsumoto/api-insta/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database (and read replica), applies the schema
// policy, connects to Redis and ensures the development superuser.
// The returned Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if _, err := database.ConnectReadReplica(cfg); err != nil {
		return nil, nil, err
	}
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := observability.RegisterGormMetrics(db); err != nil {
		middleware.Logger.Warn("gorm metrics unavailable", slog.String("error", err.Error()))
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevSuperuser(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development superuser: %w", err)
	}
	return db, r, nil
}

// EnsureDevSuperuser creates DEV_SUPERUSER_EMAIL as a superuser in development,
// or promotes it when the account already exists.
func EnsureDevSuperuser(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	email := models.NormalizeEmail(cfg.DevSuperuserEmail)
	if email == "" {
		return nil
	}
	if cfg.DevSuperuserPassword == "" {
		return fmt.Errorf("DEV_SUPERUSER_PASSWORD must be set when DEV_SUPERUSER_EMAIL is")
	}

	repo := repository.NewAccountRepository(db)
	accounts := service.NewAccountManager(repo, nil, cfg.PasswordMinLength)

	existing, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		yes := true
		if _, err := accounts.UpdateFlags(ctx, existing.ID, service.AccountFlagsInput{
			IsActive: &yes, IsStaff: &yes, IsSuperuser: &yes,
		}); err != nil {
			return err
		}
		middleware.Logger.Info("development superuser ensured", slog.String("email", email))
		return nil
	}

	if _, err := accounts.CreateSuperuser(ctx, email, cfg.DevSuperuserPassword); err != nil {
		return err
	}
	middleware.Logger.Info("development superuser created", slog.String("email", email))
	return nil
}
