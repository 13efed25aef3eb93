package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/cmd/cmdutil"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/server"
	"github.com/vksagar82/society-management-app-sub001/internal/services/scopes"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

const revokedSweepInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Starts the HTTP server exposing the society management REST API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()

		app, err := cmdutil.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.Close(cctx); err != nil {
				logger.Error("shutdown cleanup failed", zap.Error(err))
			}
		}()
		logger.Info("connected to database")

		// Refuse to start on records naming unknown scopes or roles.
		if err := scopes.ValidateStored(ctx, app.ScopeRecords); err != nil {
			return fmt.Errorf("invalid scope records: %w", err)
		}

		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		go sweepRevokedTokens(sweepCtx, app.Revoked, revokedSweepInterval)

		corsOpts := server.DefaultCORSOptions()
		if len(cfg.CORS.AllowedOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.CORS.AllowedOrigins
		}

		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			status := map[string]any{"status": "ok", "redis": cfg.Redis.Enabled()}
			code := http.StatusOK
			if err := app.DB.PingContext(r.Context()); err != nil {
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(status)
		}

		r := server.NewRouter(server.RouterOptions{
			Resolver:      app.IAM,
			Accounts:      app.Accounts,
			Societies:     app.Societies,
			Memberships:   app.Memberships,
			Scopes:        app.Scopes,
			Audit:         app.Audit,
			Issues:        app.Issues,
			Logger:        logger,
			CORSOptions:   &corsOpts,
			HealthHandler: healthHandler,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", zap.String("addr", cfg.ServerAddr), zap.String("url", cfg.ServerURL))
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down gracefully", zap.String("signal", sig.String()))

			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

// sweepRevokedTokens periodically drops revocation entries whose tokens have expired.
func sweepRevokedTokens(ctx context.Context, store repository.RevokedTokenStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn("revoked token sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("revoked tokens swept", zap.Int64("deleted", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

