package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/field-control/config"
	"github.com/Dosada05/field-control/db"
	"github.com/Dosada05/field-control/field"
	"github.com/Dosada05/field-control/game"
	"github.com/Dosada05/field-control/handlers"
	"github.com/Dosada05/field-control/models"
	"github.com/Dosada05/field-control/repositories"
	api "github.com/Dosada05/field-control/routes"
	"github.com/Dosada05/field-control/rpc"
	"github.com/Dosada05/field-control/services"
	"github.com/go-chi/chi/v5"
	"github.com/itbasis/go-clock"
	_ "github.com/lib/pq"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Инициализация WebSocket Hub
	hub := field.NewHub()
	go hub.Run()
	logger.Info("WebSocket hub started")

	// Инициализация репозиториев
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	fixtureRepo := repositories.NewPostgresFixtureRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	durations := game.Durations{
		Auto:   cfg.AutoDuration.Milliseconds(),
		Teleop: cfg.TeleopDuration.Milliseconds(),
	}
	matchService := services.NewMatchService(matchRepo, durations)
	teamService := services.NewTeamService(teamRepo)
	bracketService := services.NewBracketService(fixtureRepo, hub)
	logger.Info("services initialized")

	// Контроллер поля: владеет живым матчем и соединениями с роботами
	dialer := rpc.NewDialer(cfg.RobotDialTimeout, logger)
	controller := field.NewController(
		matchService,
		teamService,
		dialer,
		hub,
		durations,
		cfg.RobotDispatchTimeout,
		clock.New(),
		logger,
	)

	// Входящие команды операторов из WebSocket направляются в контроллер
	hub.OnRequest(func(request models.ControlRequest, _ *field.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := controller.Handle(ctx, request); err != nil {
			logger.Error("handling control request", slog.Any("error", err))
			return
		}
		controller.Broadcast(ctx)
	})

	// Периодическая рассылка снапшотов, чтобы переподключившиеся клиенты
	// сходились без внешней команды
	broadcastCtx, cancelBroadcast := context.WithCancel(context.Background())
	defer cancelBroadcast()
	go controller.Run(broadcastCtx, cfg.BroadcastInterval)
	logger.Info("snapshot broadcaster started", slog.Duration("interval", cfg.BroadcastInterval))

	// Инициализация обработчиков HTTP
	controlHandler := handlers.NewControlHandler(controller, hub)
	matchHandler := handlers.NewMatchHandler(matchService)
	teamHandler := handlers.NewTeamHandler(teamService)
	bracketHandler := handlers.NewBracketHandler(bracketService)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, controlHandler, matchHandler, teamHandler, bracketHandler)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
	}
	logger.Info("application exited")
}
