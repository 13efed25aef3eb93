// Package cmdutil wires the stores and services shared by CLI commands.
package cmdutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/config"
	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/accounts"
	"github.com/vksagar82/society-management-app-sub001/internal/services/audit"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
	"github.com/vksagar82/society-management-app-sub001/internal/services/issues"
	"github.com/vksagar82/society-management-app-sub001/internal/services/membership"
	"github.com/vksagar82/society-management-app-sub001/internal/services/scopes"
	"github.com/vksagar82/society-management-app-sub001/internal/services/societies"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

// OpenDB connects to the configured database.
func OpenDB(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxConns: cfg.MaxDBConnections})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// App bundles every service with the connections it owns.
type App struct {
	DB          *bun.DB
	Revoked     repository.RevokedTokenStore
	AuditWriter *audit.Writer
	IAM         *iam.Service

	Accounts    *accounts.Service
	Societies   *societies.Service
	Memberships *membership.Service
	Scopes      *scopes.Service
	Audit       *audit.Service
	Issues      *issues.Service

	ScopeRecords repository.ScopeRecordRepository

	closeRevoked func() error
}

// NewApp opens the database and revocation store and wires the services.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{DB: db}

	if cfg.Redis.Enabled() {
		store, err := repository.NewRedisRevokedTokenStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			bunx.Close(db)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			bunx.Close(db)
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		app.Revoked = store
		app.closeRevoked = store.Close
		logger.Info("token revocation backed by redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		app.Revoked = repository.NewBunRevokedTokenRepository(db)
	}

	authMetrics, err := telemetry.NewAuthMetrics()
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("create auth metrics: %w", err)
	}
	authzMetrics, err := telemetry.NewAuthzMetrics()
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("create authz metrics: %w", err)
	}
	auditMetrics, err := telemetry.NewAuditMetrics()
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("create audit metrics: %w", err)
	}

	users := repository.NewBunUserRepository(db)
	memberships := repository.NewBunMembershipRepository(db)
	societyRepo := repository.NewBunSocietyRepository(db)
	app.ScopeRecords = repository.NewBunScopeRecordRepository(db)
	auditRepo := repository.NewBunAuditLogRepository(db)
	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	app.IAM, err = iam.NewService(iam.Deps{
		Users:          users,
		Memberships:    memberships,
		Societies:      societyRepo,
		ScopeRecs:      app.ScopeRecords,
		Revoked:        app.Revoked,
		Tokens:         tokens,
		ScopeCacheSize: cfg.ScopeCache.Size,
		ScopeCacheTTL:  cfg.ScopeCache.TTL,
		AuthMetrics:    authMetrics,
		AuthzMetrics:   authzMetrics,
		Logger:         logger,
	})
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("create IAM service: %w", err)
	}

	app.AuditWriter = audit.NewWriter(auditRepo, logger, cfg.Audit.QueueSize, cfg.Audit.Workers).WithMetrics(auditMetrics)

	app.Accounts = accounts.NewService(accounts.Deps{
		Users:       users,
		Societies:   societyRepo,
		Memberships: memberships,
		Revoked:     app.Revoked,
		Tokens:      tokens,
		Authz:       app.IAM,
		Recorder:    app.AuditWriter,
		Metrics:     authMetrics,
		Logger:      logger,
	})
	app.Societies = societies.NewService(societyRepo, app.IAM, app.AuditWriter, logger)
	app.Memberships = membership.NewService(memberships, societyRepo, app.IAM, app.AuditWriter, logger)
	app.Scopes = scopes.NewService(app.ScopeRecords, app.IAM.Defaults, app.IAM, app.IAM.Overrides, app.AuditWriter, logger)
	app.Audit = audit.NewService(auditRepo, app.IAM, app.AuditWriter, logger)
	app.Issues = issues.NewService(repository.NewBunIssueRepository(db), app.IAM, app.AuditWriter, logger)

	return app, nil
}

// Close drains the audit writer and releases connections.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.AuditWriter != nil {
		if err := a.AuditWriter.Close(ctx); err != nil && !errors.Is(err, audit.ErrWriterClosed) {
			errs = append(errs, fmt.Errorf("close audit writer: %w", err))
		}
	}
	if a.closeRevoked != nil {
		if err := a.closeRevoked(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := bunx.Close(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
