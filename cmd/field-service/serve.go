package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"field-service/internal/auth"
	"field-service/internal/capture"
	"field-service/internal/client"
	httphandler "field-service/internal/http"
	"field-service/internal/http/middleware"
	"field-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openStore()
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer closeStore()

		walks := capture.NewRegistry(cfg.Walk.SessionTTL, cfg.Walk.MaxSessions)
		defer walks.Close()

		if cfg.Share.Secret == "" {
			appLogger.Warn().Msg("SHARE_SECRET is empty, share links are disabled")
		}

		fieldService := service.NewFieldService(store, cfg.Location, appLogger)
		handler := httphandler.NewHandler(
			fieldService,
			service.NewYieldService(store, client.NewYieldClient(cfg), appLogger),
			service.NewReportService(store, appLogger),
			service.NewShareService(fieldService, auth.NewIssuer(cfg.Share.Secret, cfg.Share.TTL), appLogger),
			service.NewCaptureService(walks, appLogger),
			appLogger,
		)
		shareMiddleware := middleware.ShareToken(auth.NewParser(cfg.Share.Secret))
		router := httphandler.NewRouter(handler, shareMiddleware, cfg.Environment)

		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			appLogger.Info().Str("addr", addr).Str("db_driver", cfg.DB.Driver).Msg("starting field service")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		appLogger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}
