package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/bloodlink/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/bloodlink/internal/repository"
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
	"github.com/aryan0dhankhar/bloodlink/internal/service"
	"github.com/aryan0dhankhar/bloodlink/pkg/config"
	"github.com/aryan0dhankhar/bloodlink/pkg/database"
)

// withDatabase opens the configured Postgres pool for the length of fn
func withDatabase(ctx context.Context, fn func(cfg *config.Config, pool *database.ConnectionPool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.NewConnectionPool(ctx, dbCfg, logger.NewLogger(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(cfg, pool)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(_ *config.Config, pool *database.ConnectionPool) error {
				if err := database.RunMigrations(pool.GetDB()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(_ *config.Config, pool *database.ConnectionPool) error {
				return database.MigrationStatus(pool.GetDB())
			})
		},
	})
	return cmd
}

func newCreateAdminCmd() *cobra.Command {
	var in service.RegisterAdminInput

	cmd := &cobra.Command{
		Use:     "create-admin",
		Short:   "Create the single administrator account directly in the database",
		Example: `  bloodlink create-admin --name "Ops" --email admin@bloodlink.org --password secret`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(cfg *config.Config, pool *database.ConnectionPool) error {
				log := logger.NewLogger(cfg.LogLevel)
				db := pool.GetDB()
				creds := service.NewCredentialStore(
					repository.NewPostgresDonorRepository(db, log),
					repository.NewPostgresHospitalRepository(db, log),
					repository.NewPostgresAdminRepository(db, log),
				)
				authService := service.NewAuthService(creds,
					auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
					auth.NewPasswordHasher(cfg.BcryptCost), audit.NewLogger(log), log)

				result, err := authService.RegisterAdmin(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Admin created: %s\n", result.Principal.PrincipalID())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "admin display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
