package migration

import (
	"github.com/globalping/backoffice/internal/config"
	"github.com/globalping/backoffice/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Non-postgres targets (local sqlite experiments) manage schema
			// by hand; migrations are written for the production dialect.
			return nil
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.SeedDevData {
			return seed.EnsureDevFixtures(conn)
		}
		return nil
	}),
)
