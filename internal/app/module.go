// Package app собирает граф зависимостей сервиса отчетов для fx.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finreport_srv/internal/config"
	"finreport_srv/internal/database"
	"finreport_srv/internal/events"
	"finreport_srv/internal/server"
	"finreport_srv/internal/service"
	"finreport_srv/internal/storage"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module предоставляет конфигурацию, логгер, БД, хранилище, издателя событий и сервис отчетов
var Module = fx.Options(
	fx.Provide(
		ProvideConfig,
		NewLogger,
		provideDatabase,
		storage.NewStorageFromConfig,
		providePublisher,
		service.NewReportServiceFromDB,
	),
)

// ServerModule добавляет HTTP сервер и его запуск в жизненном цикле приложения
var ServerModule = fx.Options(
	Module,
	fx.Provide(provideServer),
	fx.Invoke(registerLifecycleHooks),
)

// ProvideConfig загружает и предоставляет конфигурацию приложения
func ProvideConfig() (config.Config, error) {
	return config.Load()
}

// NewLogger создает и настраивает логгер на основе конфигурации
func NewLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	// Устанавливаем уровень логирования
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Неверный уровень логирования, используется info")
	}
	logger.SetLevel(level)

	// Устанавливаем формат вывода
	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.WithField("config", cfg.String()).Debug("Конфигурация загружена")
	return logger
}

// provideDatabase открывает БД, применяет миграции и закрывает пул при остановке
func provideDatabase(lc fx.Lifecycle, cfg config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	db, err := database.NewDatabase(database.FromAppConfig(cfg))
	if err != nil {
		return nil, err
	}

	if err := database.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Debug("Закрытие соединения с БД")
			return database.Close(db)
		},
	})
	return db, nil
}

// providePublisher создает издателя событий и закрывает его при остановке
func providePublisher(lc fx.Lifecycle, cfg config.Config, logger *logrus.Logger) (events.Publisher, error) {
	pub, err := events.NewPublisherFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}

func provideServer(cfg config.Config, svc service.ReportService, logger *logrus.Logger) server.HTTPServer {
	return server.NewServer(cfg, svc, logger)
}

// registerLifecycleHooks настраивает хуки жизненного цикла приложения
func registerLifecycleHooks(
	srv server.HTTPServer,
	logger *logrus.Logger,
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Запуск HTTP сервера")
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.WithError(err).Error("Не удалось запустить HTTP сервер")
					shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Завершение работы HTTP сервера")
			return srv.Shutdown(ctx)
		},
	})
}
