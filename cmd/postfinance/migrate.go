package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postfinance/internal/config"
	"postfinance/migrations"
)

func migrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back database migrations",
		Long: `Apply (up, the default) or roll back (down) the schema migrations.

Migrations are embedded in the binary; set MIGRATIONS_PATH to run them from a
directory instead.

Examples:
  postfinance migrate
  postfinance migrate down --steps 1`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runMigrations(cfg, direction, steps, logger)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply or roll back (0 means all)")
	return cmd
}

func newMigrate(cfg *config.Config) (*migrate.Migrate, error) {
	dsn := cfg.GetDBMigrationConnectionString()
	if cfg.MigrationsPath != "" {
		return migrate.New("file://"+cfg.MigrationsPath, dsn)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, dsn)
}

func runMigrations(cfg *config.Config, direction string, steps int, logger *zap.Logger) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrate instance", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	switch {
	case direction == "up" && steps == 0:
		err = m.Up()
	case direction == "up":
		err = m.Steps(steps)
	case direction == "down" && steps == 0:
		err = m.Down()
	case direction == "down":
		err = m.Steps(-steps)
	default:
		return fmt.Errorf("unknown migration direction %q, expected up or down", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", verr)
	}
	logger.Info("Database migrations completed",
		zap.String("direction", direction),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}
