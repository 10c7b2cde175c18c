package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/planning-poker/internal/poker"
	"github.com/Tyrowin/planning-poker/internal/room"
	"github.com/Tyrowin/planning-poker/internal/server"
	"github.com/Tyrowin/planning-poker/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "planning-poker"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		logger.New(zap.InfoLevel, serviceName).Fatal(ctx, err.Error())
		return
	}
	mainLogger := logger.New(logger.ParseLevel(cfg.LogLevel), serviceName)
	server.SetLogger(mainLogger)
	applied := server.SetConfig(cfg)

	service := poker.NewService(room.NewRegistry(), mainLogger)
	hub := server.NewHub(server.NewRouter(service, mainLogger), mainLogger)
	httpServer := server.CreateServer(applied.Port, server.SetupRoutes(hub))

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		hub.Run()
		return nil
	})

	eg.Go(func() error {
		return server.StartServer(egCtx, httpServer, mainLogger)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		mainLogger.Info(context.Background(), "Shutdown signal received")

		httpErr := server.ShutdownServer(httpServer, applied.ShutdownTimeout, mainLogger)
		if err := hub.Shutdown(applied.ShutdownTimeout); err != nil {
			mainLogger.Error(context.Background(), "Hub shutdown error", zap.Error(err))
			return err
		}
		return httpErr
	})

	if err := eg.Wait(); err != nil {
		mainLogger.Fatal(context.Background(), "Server stopped with error", zap.Error(err))
	}

	mainLogger.Info(context.Background(), "Server stopped")
}
