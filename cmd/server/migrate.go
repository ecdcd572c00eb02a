package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/technosupport/control-center/internal/config"
	"github.com/technosupport/control-center/internal/logging"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					return runMigration(c.String("config"), func(m *migrate.Migrate) error { return m.Up() })
				},
			},
			{
				Name:  "down",
				Usage: "Roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back, 0 for all"},
				},
				Action: func(c *cli.Context) error {
					steps := c.Int("steps")
					return runMigration(c.String("config"), func(m *migrate.Migrate) error {
						if steps <= 0 {
							return m.Down()
						}
						return m.Steps(-steps)
					})
				},
			},
			{
				Name:  "status",
				Usage: "Show the current schema version",
				Action: func(c *cli.Context) error {
					return runMigration(c.String("config"), func(m *migrate.Migrate) error {
						v, dirty, err := m.Version()
						if errors.Is(err, migrate.ErrNilVersion) {
							fmt.Println("no migrations applied")
							return nil
						}
						if err != nil {
							return err
						}
						fmt.Printf("version %d dirty=%v\n", v, dirty)
						return nil
					})
				},
			},
		},
	}
}

func runMigration(configPath string, op func(*migrate.Migrate) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, _, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m, err := migrate.New("file://"+cfg.Database.MigrationsPath, cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	start := time.Now()
	if err := op(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("migration finished", zap.String("source", cfg.Database.MigrationsPath), zap.Duration("took", time.Since(start)))
	return nil
}
