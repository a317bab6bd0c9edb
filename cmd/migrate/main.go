package main

import (
	"finreport_srv/internal/app"
	"finreport_srv/internal/config"
	"finreport_srv/internal/database"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	logger := app.NewLogger(cfg)

	// Create database connection
	dbCfg := database.FromAppConfig(cfg)
	dbCfg.Debug = true

	db, err := database.NewDatabase(dbCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	logger.WithField("driver", cfg.DB.Driver).Info("Migrations completed successfully")
}
