package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/handlers"
	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/server"
	"github.com/emilythestrangee/stackit/backend/internal/store"
	"github.com/emilythestrangee/stackit/backend/internal/telemetry"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not migrate the schema on startup")

	return cmd
}

func runServe(ctx context.Context, skipMigrate bool) error {
	cfg, logger, dbService, err := setup()
	if err != nil {
		return err
	}
	defer dbService.Close()

	shutdownTracing, err := telemetry.InitTracing(cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	db := dbService.GetDB()
	if !skipMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	st := store.New(db)
	notifier := notify.NewService(db, logger)
	votes := voting.NewService(st.Votes(), voting.WithDispatcher(notifier), voting.WithLogger(logger))
	reviewer := lifecycle.NewService(st.Lifecycle(), lifecycle.WithDispatcher(notifier), lifecycle.WithLogger(logger))

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	h := handlers.NewHandler(handlers.Deps{
		DB:         db,
		Auth:       a,
		Votes:      votes,
		Reviewer:   reviewer,
		Notifier:   notifier,
		Health:     dbService,
		Moderation: cfg.Moderation,
		Logger:     logger,
	})

	srv := server.New(*cfg, h, middleware.NewAuthenticator(a, db), logger).HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
