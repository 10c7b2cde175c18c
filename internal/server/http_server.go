package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Tyrowin/planning-poker/pkg/logger"
	"go.uber.org/zap"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it stops. A server
// closed by ShutdownServer is not an error.
func StartServer(ctx context.Context, server *http.Server, log logger.Logger) error {
	log.Info(ctx, "Server listening", zap.String("addr", server.Addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info(ctx, "Shutting down HTTP server...")

	if err := server.Shutdown(ctx); err != nil {
		log.Error(ctx, "HTTP server shutdown error", zap.Error(err))
		return err
	}

	log.Info(ctx, "HTTP server shutdown completed")
	return nil
}
