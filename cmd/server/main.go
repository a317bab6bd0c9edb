package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finreport_srv/internal/app"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

func main() {
	// .env опционален, переменные окружения имеют приоритет
	_ = godotenv.Load()

	application := fx.New(
		app.ServerModule,
		fx.NopLogger,
	)

	// Запуск приложения с остановкой
	runWithGracefulShutdown(application)
}

// runWithGracefulShutdown обрабатывает жизненный цикл приложения с обработкой сигналов
func runWithGracefulShutdown(application *fx.App) {
	// Запускаем приложение с таймаутом
	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startCancel()

	if err := application.Start(startCtx); err != nil {
		logrus.WithError(err).Fatal("Не удалось запустить приложение")
	}

	// Ожидаем сигнал завершения или запрос остановки изнутри приложения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logrus.WithField("signal", sig.String()).Info("Получен сигнал завершения работы")
	case sig := <-application.Wait():
		exitCode = sig.ExitCode
	}

	// Грациозное завершение с таймаутом
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := application.Stop(stopCtx); err != nil {
		logrus.WithError(err).Error("Ошибка при завершении работы")
		os.Exit(1)
	}

	logrus.Info("Сервис отчетов остановлен корректно")
	os.Exit(exitCode)
}
