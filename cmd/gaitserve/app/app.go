package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roman-kulish/gait-fusion/internal/server"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

// Run serves the API until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", config.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Server.Listen, err)
	}
	return Serve(ctx, listener, config, logger)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, listener net.Listener, config *Config, logger *slog.Logger) error {
	store, err := storage.NewSqliteStore(config.Storage.Path, storage.WithDriver(config.Storage.Driver))
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	if config.Settings.Level() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	options := []func(*server.Server){server.WithLogger(logger)}
	if config.Auth.Secret != "" {
		options = append(options, server.WithSecret(config.Auth.Secret))
	} else {
		logger.Warn("annotation writes are not authenticated, set auth.secret to require tokens")
	}

	srv := &http.Server{
		Handler:      server.New(store, config.Annotations.Directory, options...).Handler(),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("address", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err = <-errCh:
		return fmt.Errorf("server stopped: %w", err)

	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err = <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// IssueToken signs an annotation write token for subject.
func IssueToken(config *Config, subject string) (string, error) {
	if config.Auth.Secret == "" {
		return "", errors.New("auth.secret is not configured")
	}
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	return server.NewToken([]byte(config.Auth.Secret), subject, config.Auth.TokenTTL)
}
