package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/jobs"
	"hirevoice/interview/internal/middleware"
	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openDatabase connects with the configured driver and migrates the schema.
func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, logger *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		utils.OrNop(logger).Warn("Failed to close database", zap.Error(err))
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer closeDatabase(db, logger)

			logger.Info("Database migrated", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fail stuck responses and expire overdue sessions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer closeDatabase(db, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			result, err := jobs.NewStaleSweeperJob(repositories.New(db), cfg.Sweeper, logger).RunSweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "failed responses: %d\nexpired sessions: %d\n",
				result.FailedResponses, result.ExpiredSessions)
			return nil
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to issue tokens")
			}
			if userID == "" {
				return errors.New("--user is required")
			}
			if role != string(models.RoleRecruiter) && role != string(models.RoleCandidate) {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := middleware.IssueToken(cfg.Auth.JWTSecret, userID, models.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Subject of the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleRecruiter), "recruiter or candidate")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
